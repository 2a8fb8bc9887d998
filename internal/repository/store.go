package store

import (
	"context"

	"github.com/uirun/uirun/internal/domain"
)

// Store defines the persistence interface for the run engine.
type Store interface {
	// Runs
	CreateRunWithSteps(ctx context.Context, run *domain.Run, steps []domain.Step) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	TransitionRunStatus(ctx context.Context, runID string, from, to domain.RunStatus) (bool, error)
	CompleteRun(ctx context.Context, runID string, status domain.RunStatus, errData []byte) (bool, error)

	// Steps
	GetSteps(ctx context.Context, runID string) ([]domain.Step, error)
	GetStep(ctx context.Context, runID, stepID string) (*domain.Step, error)
	NextPendingStep(ctx context.Context, runID string) (*domain.Step, error)
	FinishStep(ctx context.Context, runID, stepID string, status domain.StepStatus) (bool, error)

	// Audit log
	AppendLog(ctx context.Context, entry *domain.LogEntry) error
	GetLogs(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.LogEntry, error)

	// Approvals
	CreateApproval(ctx context.Context, approval *domain.Approval) error
	GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error)
	GetApprovalForStep(ctx context.Context, runID, stepID string) (*domain.Approval, error)
	GetPendingApproval(ctx context.Context, runID string) (*domain.Approval, error)
	DecideApproval(ctx context.Context, approvalID string, status domain.ApprovalStatus, decidedBy, reason string) (bool, error)

	// Artifacts
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) error
	GetArtifact(ctx context.Context, runID, stepID, label string) (*domain.Artifact, error)
	ListArtifacts(ctx context.Context, runID string) ([]domain.Artifact, error)

	// Brand kit
	CreateBrandDoc(ctx context.Context, doc *domain.BrandDoc) error
	ListBrandDocs(ctx context.Context) ([]domain.BrandDoc, error)

	Close() error
}
