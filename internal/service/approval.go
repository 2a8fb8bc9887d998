package service

import (
	"context"
	"fmt"

	"github.com/uirun/uirun/internal/domain"
)

// DecideApproval resolves the pending approval of a run. Approving
// resumes the run; the gated step executes on the next dispatch. Denying
// skips the gated step and resumes the run past it. Decisions against
// terminal runs are rejected.
func (s *Service) DecideApproval(ctx context.Context, runID string, req domain.ApprovalDecisionRequest) (*domain.Approval, error) {
	if req.Decision != domain.DecisionApprove && req.Decision != domain.DecisionDeny {
		return nil, fmt.Errorf("decision must be %q or %q", domain.DecisionApprove, domain.DecisionDeny)
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run not found")
	}
	if isTerminalRunStatus(run.Status) {
		return nil, domain.ErrRunTerminal
	}

	approval, err := s.store.GetPendingApproval(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending approval: %w", err)
	}
	if approval == nil {
		return nil, domain.ErrNoPendingApproval
	}

	status := domain.ApprovalStatusApproved
	if req.Decision == domain.DecisionDeny {
		status = domain.ApprovalStatusDenied
	}
	ok, err := s.store.DecideApproval(ctx, approval.ApprovalID, status, req.DecidedBy, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to decide approval: %w", err)
	}
	if !ok {
		// Another decision won the race.
		return nil, domain.ErrNoPendingApproval
	}

	payload := domain.ApprovalPayload{
		ApprovalID: approval.ApprovalID,
		StepID:     approval.StepID,
		DecidedBy:  req.DecidedBy,
		Reason:     req.Reason,
	}
	if status == domain.ApprovalStatusApproved {
		s.appendLog(ctx, runID, domain.LogLevelInfo, domain.LogMsgApprovalGranted, payload)
	} else {
		s.appendLog(ctx, runID, domain.LogLevelWarn, domain.LogMsgApprovalDenied, payload)

		// The denied step never executes.
		if skipped, err := s.store.FinishStep(ctx, runID, approval.StepID, domain.StepStatusSkipped); err != nil {
			return nil, fmt.Errorf("failed to skip denied step: %w", err)
		} else if skipped {
			step, serr := s.store.GetStep(ctx, runID, approval.StepID)
			idx := 0
			if serr == nil && step != nil {
				idx = step.Idx
			}
			s.appendLog(ctx, runID, domain.LogLevelWarn, domain.LogMsgStepSkipped, domain.StepSkippedPayload{
				StepIndex: idx,
				StepID:    approval.StepID,
				Reason:    "approval denied",
			})
		}
	}

	// Resume the run; the guard tolerates a decision that arrives before
	// the pausing dispatch committed its transition.
	if _, err := s.store.TransitionRunStatus(ctx, runID, domain.RunStatusAwaitingApproval, domain.RunStatusRunning); err != nil {
		return nil, fmt.Errorf("failed to resume run: %w", err)
	}

	decided, err := s.store.GetApproval(ctx, approval.ApprovalID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload approval: %w", err)
	}
	return decided, nil
}
