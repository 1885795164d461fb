package workersai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/howard-nolan/workersai/internal/metrics"
	"github.com/howard-nolan/workersai/internal/provider"
)

const (
	// largeEmbeddingModel accepts smaller batches than the other
	// embedding models.
	largeEmbeddingModel = "@cf/baai/bge-large-en-v1.5"

	largeEmbeddingBatch   = 1500
	defaultEmbeddingBatch = 3000
)

// EmbeddingSettings configures an embedding model.
type EmbeddingSettings struct {
	Gateway *GatewayOptions

	// MaxEmbeddingsPerCall overrides the model's batch ceiling when > 0.
	MaxEmbeddingsPerCall int

	// SupportsParallelCalls defaults to true.
	SupportsParallelCalls *bool

	Passthrough map[string]any
}

// EmbeddingModel implements provider.EmbeddingModel.
type EmbeddingModel struct {
	modelID  string
	provider string
	settings EmbeddingSettings
	binding  Binding
	gateway  *GatewayOptions
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

var _ provider.EmbeddingModel = (*EmbeddingModel)(nil)

func (m *EmbeddingModel) Provider() string { return m.provider }
func (m *EmbeddingModel) ModelID() string  { return m.modelID }

// MaxEmbeddingsPerCall returns the caller override, or the model's ceiling.
func (m *EmbeddingModel) MaxEmbeddingsPerCall() int {
	if m.settings.MaxEmbeddingsPerCall > 0 {
		return m.settings.MaxEmbeddingsPerCall
	}
	if m.modelID == largeEmbeddingModel {
		return largeEmbeddingBatch
	}
	return defaultEmbeddingBatch
}

func (m *EmbeddingModel) SupportsParallelCalls() bool {
	if m.settings.SupportsParallelCalls != nil {
		return *m.settings.SupportsParallelCalls
	}
	return true
}

// embeddingResponse is the result payload of an embedding call.
type embeddingResponse struct {
	Shape []int       `json:"shape"`
	Data  [][]float64 `json:"data"`
}

// Embed issues one batched call. The backend returns vectors in input order
// and they are passed through as is.
func (m *EmbeddingModel) Embed(ctx context.Context, values []string) (*provider.EmbeddingResult, error) {
	if limit := m.MaxEmbeddingsPerCall(); len(values) > limit {
		return nil, &TooManyValuesError{
			Provider:      m.provider,
			ModelID:       m.modelID,
			MaxBatchSize:  limit,
			ProvidedCount: len(values),
		}
	}

	extra, err := passthroughOptions(m.settings.Passthrough)
	if err != nil {
		return nil, err
	}
	gateway := m.gateway
	if m.settings.Gateway != nil {
		gateway = m.settings.Gateway
	}

	raw, err := m.binding.Run(ctx, m.modelID, map[string]any{"text": values}, RunOptions{Gateway: gateway, Extra: extra})
	m.metrics.ObserveCall(m.modelID, metrics.KindEmbed, err)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding workersai embedding response: %w", err)
	}

	m.logger.DebugContext(ctx, "workersai embed",
		"model", m.modelID, "values", len(values), "embeddings", len(resp.Data))

	return &provider.EmbeddingResult{Embeddings: resp.Data}, nil
}
