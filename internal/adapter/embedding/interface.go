// Package embedding provides vector embeddings for brand documents.
package embedding

import "context"

// Embedder defines the interface for embedding text.
type Embedder interface {
	// EmbedTexts returns one vector per input text, in input order.
	// A positive dim asks the backend for vectors of that size; zero
	// keeps the model default.
	EmbedTexts(ctx context.Context, texts []string, dim int) ([][]float64, error)
}

// Ensure both implementations satisfy the Embedder interface.
var (
	_ Embedder = (*HTTPEmbedder)(nil)
	_ Embedder = (*MockEmbedder)(nil)
)
