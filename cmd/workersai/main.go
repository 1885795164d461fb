// Package main is a small command-line client for the Workers AI adapter.
//
// Usage:
//
//	workersai [-config config.yaml] [-model id] [-metrics] chat   <prompt>
//	workersai [-config config.yaml] [-model id] [-metrics] stream <prompt>
//	workersai [-config config.yaml] [-model id] [-metrics] embed  <text>...
//	workersai [-config config.yaml] [-model id] [-out file] image <prompt>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/howard-nolan/workersai/internal/config"
	"github.com/howard-nolan/workersai/internal/metrics"
	"github.com/howard-nolan/workersai/internal/provider"
	"github.com/howard-nolan/workersai/internal/workersai"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	model := flag.String("model", "", "model id, overriding the configured default")
	out := flag.String("out", "image.png", "output file for the image command")
	showMetrics := flag.Bool("metrics", false, "print call metrics after the command")
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	p, err := workersai.New(workersai.Settings{
		AccountID:  cfg.AccountID,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTP.Timeout},
		Gateway:    gatewayOptions(cfg.Gateway),
		Logger:     logger,
	}, workersai.WithMetrics(rec))
	if err != nil {
		logger.Error("failed to build provider", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &app{cfg: cfg, provider: p, model: *model}

	switch command {
	case "chat":
		err = app.chat(ctx, strings.Join(args, " "))
	case "stream":
		err = app.stream(ctx, strings.Join(args, " "))
	case "embed":
		err = app.embed(ctx, args)
	case "image":
		err = app.image(ctx, strings.Join(args, " "), *out)
	default:
		err = fmt.Errorf("unknown command %q", command)
	}

	if *showMetrics {
		printMetrics(reg)
	}
	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// newLogger builds the slog handler selected by the config.
func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func gatewayOptions(gc config.GatewayConfig) *workersai.GatewayOptions {
	if gc.ID == "" {
		return nil
	}
	return &workersai.GatewayOptions{
		ID:        gc.ID,
		SkipCache: gc.SkipCache,
		CacheTTL:  gc.CacheTTL,
	}
}

type app struct {
	cfg      *config.Config
	provider *workersai.Provider
	model    string
}

func (a *app) modelOr(fallback string) (string, error) {
	if a.model != "" {
		return a.model, nil
	}
	if fallback == "" {
		return "", errors.New("no model configured: pass -model or set models.* in the config")
	}
	return fallback, nil
}

func (a *app) chatModel() (*workersai.ChatModel, error) {
	id, err := a.modelOr(a.cfg.Models.Chat)
	if err != nil {
		return nil, err
	}
	settings := workersai.ChatSettings{Passthrough: a.cfg.Passthrough}
	if a.cfg.SafePrompt {
		settings.SafePrompt = &a.cfg.SafePrompt
	}
	return a.provider.Chat(id, settings), nil
}

func userPrompt(text string) *provider.ChatRequest {
	return &provider.ChatRequest{
		Prompt: []provider.Turn{{
			Role:  provider.RoleUser,
			Parts: []provider.ContentPart{provider.TextPart{Text: text}},
		}},
	}
}

func (a *app) chat(ctx context.Context, prompt string) error {
	m, err := a.chatModel()
	if err != nil {
		return err
	}
	res, err := m.Generate(ctx, userPrompt(prompt))
	if err != nil {
		return err
	}

	if res.Reasoning != "" {
		fmt.Printf("[reasoning] %s\n", res.Reasoning)
	}
	fmt.Println(res.Text)
	for _, call := range res.ToolCalls {
		fmt.Printf("[tool call] %s(%s)\n", call.Name, call.Args)
	}
	printWarnings(res.Warnings)
	fmt.Fprintf(os.Stderr, "finish=%s prompt_tokens=%d completion_tokens=%d\n",
		res.FinishReason, res.Usage.PromptTokens, res.Usage.CompletionTokens)
	return nil
}

func (a *app) stream(ctx context.Context, prompt string) error {
	m, err := a.chatModel()
	if err != nil {
		return err
	}
	res, err := m.Stream(ctx, userPrompt(prompt))
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)

	for part := range res.Parts {
		switch part.Type {
		case provider.PartTextDelta:
			fmt.Print(part.Delta)
		case provider.PartReasoningDelta:
			fmt.Fprint(os.Stderr, part.Delta)
		case provider.PartToolCall:
			fmt.Printf("\n[tool call] %s(%s)\n", part.ToolCall.Name, part.ToolCall.Args)
		case provider.PartFinish:
			fmt.Println()
			fmt.Fprintf(os.Stderr, "finish=%s prompt_tokens=%d completion_tokens=%d\n",
				part.FinishReason, part.Usage.PromptTokens, part.Usage.CompletionTokens)
		case provider.PartError:
			fmt.Println()
			return part.Err
		}
	}
	return nil
}

func (a *app) embed(ctx context.Context, values []string) error {
	id, err := a.modelOr(a.cfg.Models.Embedding)
	if err != nil {
		return err
	}
	m := a.provider.Embedding(id, workersai.EmbeddingSettings{
		MaxEmbeddingsPerCall: a.cfg.MaxEmbeddingsPerCall,
		Passthrough:          a.cfg.Passthrough,
	})

	res, err := m.Embed(ctx, values)
	if err != nil {
		return err
	}
	for i, vec := range res.Embeddings {
		head := vec
		if len(head) > 4 {
			head = head[:4]
		}
		fmt.Printf("%d: dims=%d %v...\n", i, len(vec), head)
	}
	return nil
}

func (a *app) image(ctx context.Context, prompt, out string) error {
	id, err := a.modelOr(a.cfg.Models.Image)
	if err != nil {
		return err
	}
	m := a.provider.Image(id, workersai.ImageSettings{Passthrough: a.cfg.Passthrough})

	res, err := m.Generate(ctx, &provider.ImageRequest{Prompt: prompt, N: 1})
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)

	if err := os.WriteFile(out, res.Images[0], 0644); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(res.Images[0]), out)
	return nil
}

func printWarnings(warnings []provider.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s %s %s\n", w.Type, w.Setting, w.Details)
	}
}

// printMetrics dumps every non-zero counter in reg to stderr.
func printMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		slog.Error("gathering metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			fmt.Fprintf(os.Stderr, "%s{%s} %g\n",
				mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}
