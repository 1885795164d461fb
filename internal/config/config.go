// Package config handles loading and validating adapter configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix marks environment variables that override file values.
const envPrefix = "WORKERSAI_"

// Defaults applied after loading when a field is left empty.
const (
	DefaultBaseURL     = "https://api.cloudflare.com/client/v4"
	DefaultHTTPTimeout = 60 * time.Second
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config is the top-level configuration for the Workers AI adapter.
type Config struct {
	AccountID string `koanf:"account_id"`
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`

	Gateway GatewayConfig `koanf:"gateway"`
	Models  ModelsConfig  `koanf:"models"`

	SafePrompt           bool `koanf:"safe_prompt"`
	MaxEmbeddingsPerCall int  `koanf:"max_embeddings_per_call"`

	// Passthrough options are forwarded on every call. Values must be
	// scalars; the adapter rejects anything else.
	Passthrough map[string]any `koanf:"passthrough"`

	HTTP HTTPConfig `koanf:"http"`
	Log  LogConfig  `koanf:"log"`
}

// GatewayConfig routes calls through an AI Gateway when ID is set.
type GatewayConfig struct {
	ID        string `koanf:"id"`
	SkipCache bool   `koanf:"skip_cache"`
	CacheTTL  int    `koanf:"cache_ttl"`
}

// ModelsConfig names the default model for each kind of call.
type ModelsConfig struct {
	Chat      string `koanf:"chat"`
	Embedding string `koanf:"embedding"`
	Image     string `koanf:"image"`
}

// HTTPConfig holds REST transport settings.
type HTTPConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads configuration from a YAML file, layers environment variable
// overrides on top, and returns a fully populated Config. An empty path
// skips the file and uses the environment only.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Nested keys use a double underscore so that single underscores in
	// key names survive:
	//   WORKERSAI_ACCOUNT_ID   -> account_id
	//   WORKERSAI_GATEWAY__ID  -> gateway.id
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// koanf doesn't expand ${VAR} placeholders, so secrets are resolved here.
	cfg.AccountID = expand(cfg.AccountID)
	cfg.APIKey = expand(cfg.APIKey)

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// expand resolves a value of the exact form ${NAME} from the environment.
// Anything else is returned unchanged.
func expand(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	if c.MaxEmbeddingsPerCall < 0 {
		return fmt.Errorf("max_embeddings_per_call must not be negative, got %d", c.MaxEmbeddingsPerCall)
	}
	if c.Gateway.CacheTTL < 0 {
		return fmt.Errorf("gateway.cache_ttl must not be negative, got %d", c.Gateway.CacheTTL)
	}
	return nil
}
