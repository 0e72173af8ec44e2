// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors. The companion
// uses them to index and recall long-term memories by semantic similarity.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (returned by Dimensions). Vectors from different instances
// must not be mixed in one similarity computation unless both use the same
// model.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The
	// result has length Dimensions(). Text is passed through verbatim; any
	// model-specific prefixing is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for a slice of texts in one provider call.
	// The result has the same length and order as texts. Partial results are
	// never returned; on error the whole slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces, constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific embedding model identifier, for
	// logging and consistency checks.
	ModelID() string
}
