package service

import (
	"context"
	"fmt"
	"io"

	"github.com/uirun/uirun/internal/artifacts"
	"github.com/uirun/uirun/internal/domain"
)

// IndexBrandDocs embeds and stores brand-kit documents for retrieval.
func (s *Service) IndexBrandDocs(ctx context.Context, req domain.IndexDocsRequest) (*domain.IndexDocsResponse, error) {
	if len(req.Docs) == 0 {
		return nil, fmt.Errorf("docs are required")
	}
	for i, doc := range req.Docs {
		if doc.Title == "" || doc.Content == "" {
			return nil, fmt.Errorf("doc %d: title and content are required", i+1)
		}
	}

	indexed, err := s.index.IndexDocs(ctx, req.Docs, req.EmbeddingDimension)
	if err != nil {
		return nil, fmt.Errorf("failed to index docs: %w", err)
	}
	return &domain.IndexDocsResponse{Indexed: indexed}, nil
}

// ListBrandDocs returns every indexed brand-kit document.
func (s *Service) ListBrandDocs(ctx context.Context) ([]domain.BrandDoc, error) {
	return s.store.ListBrandDocs(ctx)
}

// SearchBrandDocs returns the top snippets for a query.
func (s *Service) SearchBrandDocs(ctx context.Context, query string, topK int) ([]domain.Snippet, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	return s.index.Search(ctx, query, topK)
}

// OpenArtifact streams a stored capture's bytes with its metadata. A nil
// artifact with nil error means no such capture exists.
func (s *Service) OpenArtifact(ctx context.Context, runID, stepID, label string) (*domain.Artifact, io.ReadCloser, error) {
	artifact, err := s.store.GetArtifact(ctx, runID, stepID, label)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	if artifact == nil {
		return nil, nil, nil
	}
	rc, err := s.bridge.Open(ctx, artifacts.Key(runID, stepID, artifact.Label))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	return artifact, rc, nil
}

// ListArtifacts returns the capture metadata for a run.
func (s *Service) ListArtifacts(ctx context.Context, runID string) ([]domain.Artifact, error) {
	return s.store.ListArtifacts(ctx, runID)
}

// PolicyDecision dry-runs the step policy against a hypothetical step.
func (s *Service) PolicyDecision(ctx context.Context, verb, arg string, kind domain.StepKind, requiresApproval bool) (string, string, error) {
	step := &domain.Step{
		Verb:             verb,
		Arg:              arg,
		Kind:             kind,
		RequiresApproval: requiresApproval,
	}
	return s.policyEngine.EvaluateStep(ctx, step)
}
