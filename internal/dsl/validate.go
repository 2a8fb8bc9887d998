package dsl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/uirun/uirun/internal/domain"
)

// ValidationError explains why a plan was rejected. Index is the zero-based
// position of the offending step, or -1 for plan-level problems.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid plan: %s", e.Reason)
	}
	return fmt.Sprintf("invalid plan: step %d: %s", e.Index+1, e.Reason)
}

// Limits bounds accepted plans.
type Limits struct {
	MaxSteps  int
	MaxWaitMS int
}

// Step IDs end up in artifact paths, so they are restricted to a safe set.
var reStepID = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// ValidatePlan checks a submitted plan and materializes its steps in order.
// It is pure: nothing is persisted here, so a rejected plan leaves no trace.
// UI instructions must parse; non-UI (write) steps carry free-form text and
// are skipped at execution time.
func ValidatePlan(plan *domain.PlanSpec, lim Limits) ([]domain.Step, error) {
	if plan == nil || len(plan.Steps) == 0 {
		return nil, &ValidationError{Index: -1, Reason: "plan has no steps"}
	}
	if lim.MaxSteps > 0 && len(plan.Steps) > lim.MaxSteps {
		return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("plan has %d steps, limit is %d", len(plan.Steps), lim.MaxSteps)}
	}
	if strings.TrimSpace(plan.StartingURL) == "" {
		return nil, &ValidationError{Index: -1, Reason: "starting_url is required"}
	}

	steps := make([]domain.Step, 0, len(plan.Steps))
	seen := make(map[string]struct{}, len(plan.Steps))
	for i, ps := range plan.Steps {
		id := strings.TrimSpace(ps.ID)
		if id == "" {
			id = fmt.Sprintf("S%d", i+1)
		}
		if !reStepID.MatchString(id) {
			return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("step id %q is not a safe identifier", id)}
		}
		if _, dup := seen[id]; dup {
			return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("duplicate step id %q", id)}
		}
		seen[id] = struct{}{}

		kind, err := stepKind(ps.Type)
		if err != nil {
			return nil, &ValidationError{Index: i, Reason: err.Error()}
		}

		instruction := strings.TrimSpace(ps.Instruction)
		if instruction == "" {
			return nil, &ValidationError{Index: i, Reason: "instruction is empty"}
		}

		step := domain.Step{
			StepID:           id,
			Idx:              i,
			Kind:             kind,
			Instruction:      instruction,
			RequiresApproval: ps.RequiresApproval,
			Status:           domain.StepStatusPending,
		}
		if kind == domain.StepKindUI {
			cmd, err := Parse(instruction)
			if err != nil {
				return nil, &ValidationError{Index: i, Reason: err.Error()}
			}
			if cmd.Verb == VerbWaitMS && lim.MaxWaitMS > 0 && cmd.Millis > lim.MaxWaitMS {
				return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("WAIT_MS %d exceeds limit %d", cmd.Millis, lim.MaxWaitMS)}
			}
			step.Verb = string(cmd.Verb)
			step.Arg = cmd.ArgText()
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func stepKind(t string) (domain.StepKind, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", domain.PlanStepTypeUI:
		return domain.StepKindUI, nil
	case domain.PlanStepTypeWrite:
		return domain.StepKindNonUI, nil
	default:
		return "", fmt.Errorf("unknown step type %q", t)
	}
}

// ArgText renders the command argument for logs and policy input. TYPE_ID
// exposes only the field id, never the typed value.
func (c *Command) ArgText() string {
	switch c.Verb {
	case VerbTypeID:
		return c.Field
	case VerbWaitMS:
		return fmt.Sprintf("%d", c.Millis)
	default:
		return c.Arg
	}
}
