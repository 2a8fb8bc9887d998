// Package index is a small vector index over brand documents, embedded
// on write and ranked by cosine similarity on read.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uirun/uirun/internal/adapter/embedding"
	"github.com/uirun/uirun/internal/domain"
)

const defaultTopK = 3

// DocStore is the persistence surface the index needs.
type DocStore interface {
	CreateBrandDoc(ctx context.Context, doc *domain.BrandDoc) error
	ListBrandDocs(ctx context.Context) ([]domain.BrandDoc, error)
}

// Index embeds brand documents on write and retrieves the closest ones
// for a query.
type Index struct {
	store    DocStore
	embedder embedding.Embedder
}

func New(store DocStore, embedder embedding.Embedder) *Index {
	return &Index{store: store, embedder: embedder}
}

// IndexDocs embeds and persists the documents, returning how many were
// stored. A positive dim overrides the embedding size.
func (ix *Index) IndexDocs(ctx context.Context, docs []domain.BrandDocIn, dim int) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Title + "\n" + d.Content
	}
	vecs, err := ix.embedder.EmbedTexts(ctx, texts, dim)
	if err != nil {
		return 0, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vecs) != len(docs) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}

	count := 0
	for i, d := range docs {
		doc := &domain.BrandDoc{
			DocID:     "doc_" + uuid.New().String()[:8],
			Title:     d.Title,
			Source:    d.Source,
			Content:   d.Content,
			Tags:      strings.Join(d.Tags, ","),
			Embedding: vecs[i],
			CreatedAt: time.Now().UTC(),
		}
		if err := ix.store.CreateBrandDoc(ctx, doc); err != nil {
			return count, fmt.Errorf("failed to store document %q: %w", d.Title, err)
		}
		count++
	}
	return count, nil
}

// Search returns the topK documents closest to the query. An empty
// index yields an empty result without touching the embedder.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]domain.Snippet, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	docs, err := ix.store.ListBrandDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	// The query must embed at the same size the documents did.
	vecs, err := ix.embedder.EmbedTexts(ctx, []string{query}, len(docs[0].Embedding))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(vecs))
	}

	snippets := make([]domain.Snippet, 0, len(docs))
	for _, doc := range docs {
		snippets = append(snippets, domain.Snippet{
			DocID:   doc.DocID,
			Title:   doc.Title,
			Content: doc.Content,
			Score:   Cosine(vecs[0], doc.Embedding),
		})
	}
	return TopK(snippets, topK), nil
}

// Cosine is the cosine similarity of two vectors. Mismatched or
// degenerate vectors score zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na < 1e-9 || nb < 1e-9 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK returns the k highest scoring snippets, best first. Ties keep
// their input order.
func TopK(snippets []domain.Snippet, k int) []domain.Snippet {
	out := make([]domain.Snippet, len(snippets))
	copy(out, snippets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k < len(out) {
		out = out[:k]
	}
	return out
}
