package interfaces

import "context"

// EmbeddingClient generates vector embeddings via a remote provider
type EmbeddingClient interface {
	// Embed returns a fixed-length vector for the given text. Input is
	// truncated to the provider limit before sending. Server-side (5xx)
	// failures are retried with backoff; client-side failures propagate
	// immediately.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the expected vector length
	Dimension() int
}
