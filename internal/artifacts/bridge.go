package artifacts

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/uirun/uirun/internal/domain"
)

// MetadataStore is the slice of the relational store the bridge needs.
type MetadataStore interface {
	GetArtifact(ctx context.Context, runID, stepID, label string) (*domain.Artifact, error)
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) error
}

// Bridge turns capture bytes into an addressed, immutable artifact.
type Bridge struct {
	backend Backend
	store   MetadataStore
}

// NewBridge wires a byte backend to the metadata store.
func NewBridge(backend Backend, store MetadataStore) *Bridge {
	return &Bridge{backend: backend, store: store}
}

// A colliding label gets a numeric suffix rather than overwriting
// evidence; give up after a sane number of tries.
const maxLabelAttempts = 100

// SaveScreenshot stores PNG bytes under (run, step, label). If the label
// is taken the capture is stored under label_2, label_3 and so on; an
// existing artifact is never overwritten. All failures surface as
// CaptureFailed step errors.
func (b *Bridge) SaveScreenshot(ctx context.Context, runID, stepID, rawLabel string, png []byte) (*domain.Artifact, error) {
	label := SanitizeLabel(rawLabel)
	for n := 1; n <= maxLabelAttempts; n++ {
		candidate := label
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d", label, n)
		}
		existing, err := b.store.GetArtifact(ctx, runID, stepID, candidate)
		if err != nil {
			return nil, domain.WrapStepError(domain.ErrKindCaptureFailed, "artifact lookup failed", err)
		}
		if existing != nil {
			continue
		}

		if err := b.backend.Put(ctx, Key(runID, stepID, candidate), png, "image/png"); err != nil {
			return nil, domain.WrapStepError(domain.ErrKindCaptureFailed, "artifact write failed", err)
		}
		artifact := &domain.Artifact{
			RunID:     runID,
			StepID:    stepID,
			Label:     candidate,
			Path:      PublicPath(runID, stepID, candidate),
			Size:      int64(len(png)),
			CreatedAt: time.Now(),
		}
		if err := b.store.CreateArtifact(ctx, artifact); err != nil {
			// Lost a race for this label; move on to the next suffix.
			continue
		}
		return artifact, nil
	}
	return nil, domain.StepErrorf(domain.ErrKindCaptureFailed, "no free label for %s/%s/%s", runID, stepID, label)
}

// Open streams the stored bytes for a capture key.
func (b *Bridge) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.backend.Open(ctx, key)
}
