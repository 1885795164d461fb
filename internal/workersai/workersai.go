// Package workersai adapts the neutral provider contract to the Cloudflare
// Workers AI backend.
//
// Requests are translated into the backend's flat message format, sent over
// a Binding (the REST API or a caller-supplied runtime binding), and the
// backend's responses (buffered JSON or server-sent events) are translated
// back into provider types.
package workersai

import (
	"log/slog"
	"time"

	"github.com/howard-nolan/workersai/internal/metrics"
)

// Provider names reported by the models.
const (
	ProviderChat      = "workersai.chat"
	ProviderEmbedding = "workersai.embedding"
	ProviderImage     = "workersai.image"
)

// Provider builds chat, embedding and image models that share one
// transport. It holds no per-call state and is safe for concurrent use.
type Provider struct {
	binding Binding
	gateway *GatewayOptions
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option customizes a Provider.
type Option func(*Provider)

// WithMetrics records calls on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(p *Provider) { p.metrics = rec }
}

// New builds a Provider. The transport comes from NewBinding.
func New(s Settings, opts ...Option) (*Provider, error) {
	binding, err := NewBinding(s)
	if err != nil {
		return nil, err
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		binding: binding,
		gateway: s.Gateway,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Chat returns a text-generation model.
func (p *Provider) Chat(modelID string, settings ChatSettings) *ChatModel {
	return &ChatModel{
		modelID:  modelID,
		provider: ProviderChat,
		settings: settings,
		binding:  p.binding,
		gateway:  p.gateway,
		logger:   p.logger.With("provider", ProviderChat),
		metrics:  p.metrics,
	}
}

// Embedding returns a text-embedding model.
func (p *Provider) Embedding(modelID string, settings EmbeddingSettings) *EmbeddingModel {
	return &EmbeddingModel{
		modelID:  modelID,
		provider: ProviderEmbedding,
		settings: settings,
		binding:  p.binding,
		gateway:  p.gateway,
		logger:   p.logger.With("provider", ProviderEmbedding),
		metrics:  p.metrics,
	}
}

// Image returns an image-generation model.
func (p *Provider) Image(modelID string, settings ImageSettings) *ImageModel {
	return &ImageModel{
		modelID:  modelID,
		provider: ProviderImage,
		settings: settings,
		binding:  p.binding,
		gateway:  p.gateway,
		logger:   p.logger.With("provider", ProviderImage),
		metrics:  p.metrics,
		now:      time.Now,
	}
}
