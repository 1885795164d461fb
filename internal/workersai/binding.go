package workersai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
)

// Binding is the transport to the backend. It mirrors the runtime binding
// that hosted code receives: run a model with JSON inputs and get either the
// post-processed result or the raw response stream.
//
// The package ships a REST implementation (see NewBinding); callers running
// next to a native binding can supply their own implementation instead.
type Binding interface {
	// Run issues a buffered call and returns the result payload, already
	// unwrapped from any transport envelope.
	Run(ctx context.Context, model string, inputs map[string]any, opts RunOptions) (json.RawMessage, error)

	// RunStream issues a call whose response body is consumed
	// incrementally: an event stream when inputs carry "stream": true, or
	// raw image bytes for image models. The caller closes the reader.
	RunStream(ctx context.Context, model string, inputs map[string]any, opts RunOptions) (io.ReadCloser, error)
}

// GatewayOptions routes calls through an AI Gateway.
type GatewayOptions struct {
	ID        string
	SkipCache bool
	// CacheTTL in seconds; zero leaves the gateway default.
	CacheTTL int
}

// RunOptions are per-call transport options.
type RunOptions struct {
	Gateway *GatewayOptions
	// Extra holds passthrough options, already coerced to strings. The REST
	// transport sends them as query parameters; a native binding receives
	// them inline.
	Extra map[string]string
}

// Settings configures the transport factory and the models built on it.
type Settings struct {
	// Binding, when set, is used as is and the credentials are ignored.
	Binding Binding

	AccountID string
	APIKey    string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// GatewayBaseURL defaults to DefaultGatewayBaseURL.
	GatewayBaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	Gateway *GatewayOptions
	Logger  *slog.Logger
}

// NewBinding builds the transport described by s. It is a pure function of
// its input: a supplied binding wins, otherwise the credentials build a
// REST transport.
func NewBinding(s Settings) (Binding, error) {
	if s.Binding != nil {
		return s.Binding, nil
	}
	if s.AccountID == "" || s.APIKey == "" {
		return nil, ErrNoTransport
	}

	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	gatewayURL := s.GatewayBaseURL
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayBaseURL
	}
	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &restBinding{
		accountID:  s.AccountID,
		apiKey:     s.APIKey,
		baseURL:    baseURL,
		gatewayURL: gatewayURL,
		client:     client,
	}, nil
}

// passthroughOptions merges option maps (later maps win) and coerces every
// value to a string. Only strings, bools and numbers are accepted.
func passthroughOptions(maps ...map[string]any) (map[string]string, error) {
	var out map[string]string
	for _, m := range maps {
		for key, value := range m {
			s, err := scalarString(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %q has type %T", ErrInvalidPassthrough, key, value)
			}
			if out == nil {
				out = make(map[string]string)
			}
			out[key] = s
		}
	}
	return out, nil
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case json.Number:
		return x.String(), nil
	default:
		return "", ErrInvalidPassthrough
	}
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", ErrInvalidPassthrough
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
