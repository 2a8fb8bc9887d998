package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uirun/uirun/internal/domain"
	"github.com/uirun/uirun/internal/dsl"
	"github.com/uirun/uirun/policy"
)

// ExecuteNextStep advances a run by exactly one step. Calls for the same
// run are serialized; a call that arrives while another is in flight is
// rejected with ErrRunBusy. Terminal runs and exhausted plans return a
// no-op result. A nil response with nil error means the run does not
// exist.
func (s *Service) ExecuteNextStep(ctx context.Context, runID string) (*domain.ExecuteStepResponse, error) {
	mu := s.runLock(runID)
	if !mu.TryLock() {
		return nil, domain.ErrRunBusy
	}
	defer mu.Unlock()

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, nil
	}

	if isTerminalRunStatus(run.Status) {
		return &domain.ExecuteStepResponse{RunID: runID, Status: run.Status, Done: true}, nil
	}

	if run.Status == domain.RunStatusAwaitingApproval {
		pending, err := s.store.GetPendingApproval(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to get pending approval: %w", err)
		}
		if pending != nil {
			return &domain.ExecuteStepResponse{
				RunID:  runID,
				Status: run.Status,
				Error: &domain.StepErrorBody{
					Kind:   domain.ErrKindApprovalRequired,
					Detail: fmt.Sprintf("approval %s is pending for step %s", pending.ApprovalID, pending.StepID),
				},
			}, nil
		}
		// The decision landed but the run status did not catch up.
		if _, err := s.store.TransitionRunStatus(ctx, runID, domain.RunStatusAwaitingApproval, domain.RunStatusRunning); err != nil {
			return nil, fmt.Errorf("failed to resume run: %w", err)
		}
		run.Status = domain.RunStatusRunning
	}

	// First dispatch starts the run.
	if run.Status == domain.RunStatusCreated {
		if _, err := s.store.TransitionRunStatus(ctx, runID, domain.RunStatusCreated, domain.RunStatusRunning); err != nil {
			return nil, fmt.Errorf("failed to start run: %w", err)
		}
		run.Status = domain.RunStatusRunning
	}

	step, err := s.store.NextPendingStep(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get next step: %w", err)
	}
	if step == nil {
		if _, err := s.store.CompleteRun(ctx, runID, domain.RunStatusDone, nil); err != nil {
			return nil, fmt.Errorf("failed to complete run: %w", err)
		}
		return &domain.ExecuteStepResponse{RunID: runID, Status: domain.RunStatusDone, Done: true}, nil
	}

	decision, reason, err := s.policyEngine.EvaluateStep(ctx, step)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	switch decision {
	case policy.DecisionBlock:
		msg := "blocked by policy"
		if reason != "" {
			msg += ": " + reason
		}
		return s.skipStep(ctx, run, step, domain.LogLevelWarn, msg)
	case policy.DecisionRequireApproval:
		resp, proceed, err := s.gateOnApproval(ctx, run, step, reason)
		if !proceed {
			return resp, err
		}
	}

	if step.Kind == domain.StepKindNonUI {
		return s.skipStep(ctx, run, step, domain.LogLevelInfo, "non-ui step, nothing to execute in the browser")
	}

	return s.executeUIStep(ctx, run, step)
}

// gateOnApproval pauses the run on a step that needs human sign-off,
// creating the pending approval on first encounter. proceed is true only
// when a granted approval already covers the step.
func (s *Service) gateOnApproval(ctx context.Context, run *domain.Run, step *domain.Step, reason string) (*domain.ExecuteStepResponse, bool, error) {
	approval, err := s.store.GetApprovalForStep(ctx, run.RunID, step.StepID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get approval: %w", err)
	}
	if approval == nil {
		approval = &domain.Approval{
			ApprovalID: "apr_" + uuid.New().String()[:8],
			RunID:      run.RunID,
			StepID:     step.StepID,
			Status:     domain.ApprovalStatusPending,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.store.CreateApproval(ctx, approval); err != nil {
			return nil, false, fmt.Errorf("failed to create approval: %w", err)
		}
		s.appendLog(ctx, run.RunID, domain.LogLevelInfo, domain.LogMsgApprovalRequested, domain.ApprovalPayload{
			ApprovalID: approval.ApprovalID,
			StepID:     step.StepID,
			Reason:     reason,
		})
	}

	switch approval.Status {
	case domain.ApprovalStatusApproved:
		return nil, true, nil
	case domain.ApprovalStatusDenied:
		// Deny normally skips the step at decision time; catching it here
		// covers a decision that crashed mid-apply.
		resp, err := s.skipStep(ctx, run, step, domain.LogLevelWarn, "approval denied")
		return resp, false, err
	default:
		if _, err := s.store.TransitionRunStatus(ctx, run.RunID, domain.RunStatusRunning, domain.RunStatusAwaitingApproval); err != nil {
			return nil, false, fmt.Errorf("failed to pause run: %w", err)
		}
		run.Status = domain.RunStatusAwaitingApproval
		return &domain.ExecuteStepResponse{
			RunID:  run.RunID,
			Status: run.Status,
			Error: &domain.StepErrorBody{
				Kind:   domain.ErrKindApprovalRequired,
				Detail: fmt.Sprintf("approval %s is pending for step %s", approval.ApprovalID, step.StepID),
			},
		}, false, nil
	}
}

// executeUIStep leases the run's browser session and executes one parsed
// instruction through the interpreter.
func (s *Service) executeUIStep(ctx context.Context, run *domain.Run, step *domain.Step) (*domain.ExecuteStepResponse, error) {
	cmd, err := dsl.Parse(step.Instruction)
	if err != nil {
		// Validation admits only parseable UI instructions, so a stored
		// step that no longer parses is corrupt rather than retryable.
		return s.failStep(ctx, run, step, domain.WrapStepError(domain.ErrKindUnknownInstruction, err.Error(), err))
	}

	s.appendLog(ctx, run.RunID, domain.LogLevelInfo, domain.LogMsgExecutingStep, domain.StepDispatchPayload{
		StepIndex:   step.Idx,
		StepID:      step.StepID,
		Instruction: step.Instruction,
	})

	actx, cancel := context.WithTimeout(ctx, s.config.NavTimeout)
	lease, created, err := s.sessions.Acquire(actx, run.RunID, run.StartingURL)
	cancel()
	if err != nil {
		return s.failStep(ctx, run, step, err)
	}
	if created {
		s.appendLog(ctx, run.RunID, domain.LogLevelInfo, domain.LogMsgSessionOpened, domain.SessionPayload{
			StartingURL: run.StartingURL,
		})
	}

	obs, execErr := s.interp.Execute(ctx, lease.Page, cmd)
	lease.Release()
	if execErr != nil {
		return s.failStep(ctx, run, step, execErr)
	}

	payload := domain.StepExecutedPayload{
		StepIndex: step.Idx,
		StepID:    step.StepID,
		Verb:      step.Verb,
		FinalURL:  obs.FinalURL,
		Title:     obs.Title,
	}
	if len(obs.Shot) > 0 {
		artifact, aerr := s.bridge.SaveScreenshot(ctx, run.RunID, step.StepID, obs.Label, obs.Shot)
		if aerr != nil {
			return s.failStep(ctx, run, step, domain.WrapStepError(domain.ErrKindCaptureFailed, "failed to store screenshot", aerr))
		}
		payload.Artifact = artifact.Path
	}

	if _, err := s.store.FinishStep(ctx, run.RunID, step.StepID, domain.StepStatusExecuted); err != nil {
		return nil, fmt.Errorf("failed to finish step: %w", err)
	}
	s.appendLog(ctx, run.RunID, domain.LogLevelInfo, domain.LogMsgStepExecuted, payload)

	return s.advance(ctx, run, step, domain.StepStatusExecuted)
}

// skipStep marks a step SKIPPED and advances the run.
func (s *Service) skipStep(ctx context.Context, run *domain.Run, step *domain.Step, level domain.LogLevel, reason string) (*domain.ExecuteStepResponse, error) {
	if _, err := s.store.FinishStep(ctx, run.RunID, step.StepID, domain.StepStatusSkipped); err != nil {
		return nil, fmt.Errorf("failed to skip step: %w", err)
	}
	s.appendLog(ctx, run.RunID, level, domain.LogMsgStepSkipped, domain.StepSkippedPayload{
		StepIndex: step.Idx,
		StepID:    step.StepID,
		Reason:    reason,
	})
	return s.advance(ctx, run, step, domain.StepStatusSkipped)
}

// failStep applies the failure policy to a classified step error. A
// SessionUnavailable failure leaves the step PENDING and the run
// dispatchable; every other kind fails the step and ends the run.
// Unclassified errors propagate as internal faults without touching the
// step, so the caller can retry the dispatch.
func (s *Service) failStep(ctx context.Context, run *domain.Run, step *domain.Step, cause error) (*domain.ExecuteStepResponse, error) {
	var se *domain.StepError
	if !errors.As(cause, &se) {
		return nil, cause
	}

	if se.Kind == domain.ErrKindSsrfBlocked {
		s.appendLog(ctx, run.RunID, domain.LogLevelError, domain.LogMsgSsrfBlocked, domain.SsrfBlockedPayload{
			URL:    run.StartingURL,
			Detail: se.Detail,
		})
	}

	failure := domain.StepFailedPayload{
		StepIndex: step.Idx,
		StepID:    step.StepID,
		Verb:      step.Verb,
		Arg:       step.Arg,
		Kind:      se.Kind,
		Detail:    se.Detail,
	}

	if domain.IsResumable(se) {
		s.appendLog(ctx, run.RunID, domain.LogLevelWarn, domain.LogMsgStepFailed, failure)
		return &domain.ExecuteStepResponse{
			RunID:  run.RunID,
			Status: domain.RunStatusRunning,
			Error:  se.Body(),
		}, nil
	}

	if _, err := s.store.FinishStep(ctx, run.RunID, step.StepID, domain.StepStatusFailed); err != nil {
		return nil, fmt.Errorf("failed to fail step: %w", err)
	}
	s.appendLog(ctx, run.RunID, domain.LogLevelError, domain.LogMsgStepFailed, failure)

	errData, err := json.Marshal(se.Body())
	if err != nil {
		errData = nil
	}
	if _, err := s.store.CompleteRun(ctx, run.RunID, domain.RunStatusError, errData); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}

	return &domain.ExecuteStepResponse{
		RunID:          run.RunID,
		Status:         domain.RunStatusError,
		ExecutedStepID: step.StepID,
		StepStatus:     domain.StepStatusFailed,
		Done:           true,
		Error:          se.Body(),
	}, nil
}

// advance closes out a dispatch whose step reached a terminal status
// without failing the run. The run moves to DONE when the plan is
// exhausted.
func (s *Service) advance(ctx context.Context, run *domain.Run, step *domain.Step, stepStatus domain.StepStatus) (*domain.ExecuteStepResponse, error) {
	next, err := s.store.NextPendingStep(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to check remaining steps: %w", err)
	}

	status := domain.RunStatusRunning
	done := false
	if next == nil {
		if _, err := s.store.CompleteRun(ctx, run.RunID, domain.RunStatusDone, nil); err != nil {
			return nil, fmt.Errorf("failed to complete run: %w", err)
		}
		status = domain.RunStatusDone
		done = true
	}

	return &domain.ExecuteStepResponse{
		RunID:          run.RunID,
		Status:         status,
		ExecutedStepID: step.StepID,
		StepStatus:     stepStatus,
		Done:           done,
	}, nil
}
