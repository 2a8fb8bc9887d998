package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uirun/uirun/internal/domain"
	"github.com/uirun/uirun/internal/dsl"
	"github.com/uirun/uirun/internal/urlguard"
)

// CreateTask plans a natural-language task and persists the result as a
// new run in CREATED state. The planner sees the top brand-kit snippets
// for the task; retrieval failures degrade to planning without context.
func (s *Service) CreateTask(ctx context.Context, req domain.TaskRequest) (*domain.TaskResponse, error) {
	task := strings.TrimSpace(req.Task)
	if task == "" {
		return nil, fmt.Errorf("task is required")
	}

	var snippets []domain.Snippet
	if s.index != nil {
		found, err := s.index.Search(ctx, task, req.TopK)
		if err != nil {
			log.Printf("WARN: brand-kit retrieval failed, planning without context: %v", err)
		} else {
			snippets = found
		}
	}

	plan, err := s.planner.PlanTask(ctx, task, snippets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPlannerFailed, err)
	}

	run, err := s.createRun(ctx, task, plan)
	if err != nil {
		return nil, err
	}

	return &domain.TaskResponse{
		RunID:   run.RunID,
		Task:    task,
		Plan:    plan,
		Context: snippets,
	}, nil
}

// CreateRun persists a client-submitted plan as a new run.
func (s *Service) CreateRun(ctx context.Context, req domain.CreateRunRequest) (*domain.CreateRunResponse, error) {
	plan := &domain.PlanSpec{
		StartingURL: req.StartingURL,
		Steps:       req.Steps,
	}
	run, err := s.createRun(ctx, strings.TrimSpace(req.Task), plan)
	if err != nil {
		return nil, err
	}
	return &domain.CreateRunResponse{
		RunID:       run.RunID,
		Status:      string(run.Status),
		StartingURL: run.StartingURL,
		StepCount:   len(plan.Steps),
	}, nil
}

// createRun validates a plan, applies the starting-URL policy and writes
// the run with its steps in one transaction. A rejected plan persists
// nothing. The resolved starting URL is written back into the plan so
// callers see the URL the run will actually open.
func (s *Service) createRun(ctx context.Context, task string, plan *domain.PlanSpec) (*domain.Run, error) {
	steps, err := dsl.ValidatePlan(plan, s.planLimits())
	if err != nil {
		return nil, err
	}

	mode, err := urlguard.ParseMode(s.config.StartingURLMode)
	if err != nil {
		return nil, err
	}
	startingURL, err := urlguard.ResolveStartingURL(mode, s.config.DemoStartingURL, plan.StartingURL, s.config.AllowedStartingHosts)
	if err != nil {
		return nil, &dsl.ValidationError{Index: -1, Reason: err.Error()}
	}
	if s.config.SSRFProtection {
		if err := s.guard.Check(ctx, startingURL); err != nil {
			return nil, err
		}
	}
	plan.StartingURL = startingURL

	runID := "run_" + uuid.New().String()[:8]
	now := time.Now().UTC()
	run := &domain.Run{
		RunID:       runID,
		Task:        task,
		Status:      domain.RunStatusCreated,
		StartingURL: startingURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := range steps {
		steps[i].RunID = runID
	}

	if err := s.store.CreateRunWithSteps(ctx, run, steps); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	s.appendLog(ctx, runID, domain.LogLevelInfo, domain.LogMsgRunCreated, domain.RunCreatedPayload{
		Task:        task,
		StartingURL: startingURL,
		StepCount:   len(steps),
	})

	return run, nil
}

// GetRun returns a run with its steps and audit trail, or nil when the
// run does not exist.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.RunDetail, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, nil
	}
	steps, err := s.store.GetSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	logs, err := s.store.GetLogs(ctx, runID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	return &domain.RunDetail{Run: run, Steps: steps, Logs: logs}, nil
}

// GetRunLogs returns the audit trail for a run after the given sequence
// number. A nil slice with no error means the run has no matching entries.
func (s *Service) GetRunLogs(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.LogEntry, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run not found")
	}
	return s.store.GetLogs(ctx, runID, afterSeq, limit)
}

// ListRuns returns run summaries, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	summaries := make([]domain.RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, domain.RunSummary{
			RunID:     r.RunID,
			Task:      r.Task,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return summaries, nil
}

// isTerminalRunStatus reports whether a run can no longer change state.
func isTerminalRunStatus(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusDone, domain.RunStatusError:
		return true
	default:
		return false
	}
}
