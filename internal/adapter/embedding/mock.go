package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const mockDim = 16

// MockEmbedder is a deterministic Embedder for testing and offline
// development.
type MockEmbedder struct{}

// NewMockEmbedder creates a new mock embedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// EmbedTexts embeds each text with a word-bucket hash.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string, dim int) ([][]float64, error) {
	if dim <= 0 {
		dim = mockDim
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = mockVector(text, dim)
	}
	return out, nil
}

// mockVector hashes words into a fixed number of buckets, so equal texts
// embed identically and texts sharing words land near each other.
func mockVector(text string, dim int) []float64 {
	vec := make([]float64, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
