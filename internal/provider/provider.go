// Package provider defines the vendor-neutral contract for text generation,
// embeddings and image generation.
//
// Backend adapters (see internal/workersai) implement ChatModel,
// EmbeddingModel and ImageModel. Callers build requests against the types in
// this package and never see a backend's wire format.
package provider

import "context"

// ChatModel is the interface every text-generation backend must satisfy.
type ChatModel interface {
	// Provider returns the provider identifier, e.g. "workersai.chat".
	// Used for logging and metrics labels.
	Provider() string

	// ModelID returns the backend model identifier this model was built for.
	ModelID() string

	// Generate sends a request and returns the complete result.
	//
	// The context.Context parameter carries cancellation signals and
	// deadlines; adapters pass it through to the network call.
	Generate(ctx context.Context, req *ChatRequest) (*GenerationResult, error)

	// Stream sends a request and returns a channel that delivers stream
	// parts in emission order. The channel is closed after the finish part
	// (or after a part carrying Err). Each stream is consumed once.
	//
	// Whether the parts come from real incremental events or from a
	// buffered call replayed in one burst is an adapter detail.
	Stream(ctx context.Context, req *ChatRequest) (*StreamResult, error)
}

// EmbeddingModel turns a batch of strings into vectors.
type EmbeddingModel interface {
	Provider() string
	ModelID() string

	// MaxEmbeddingsPerCall is the largest batch Embed accepts.
	MaxEmbeddingsPerCall() int

	// SupportsParallelCalls reports whether callers may issue several
	// Embed calls concurrently.
	SupportsParallelCalls() bool

	// Embed returns one embedding per value, in input order.
	Embed(ctx context.Context, values []string) (*EmbeddingResult, error)
}

// ImageModel generates images from a text prompt.
type ImageModel interface {
	Provider() string
	ModelID() string

	// MaxImagesPerCall is the number of images one backend call produces.
	MaxImagesPerCall() int

	// Generate returns req.N images, ordered by call issue order.
	Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error)
}
