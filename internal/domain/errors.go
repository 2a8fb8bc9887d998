package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies step and run failures surfaced through the audit trail.
type ErrorKind string

const (
	ErrKindPlanValidation     ErrorKind = "PlanValidationError"
	ErrKindUnknownInstruction ErrorKind = "UnknownInstruction"
	ErrKindSsrfBlocked        ErrorKind = "SsrfBlocked"
	ErrKindSessionUnavailable ErrorKind = "SessionUnavailable"
	ErrKindSelectorNotFound   ErrorKind = "SelectorNotFound"
	ErrKindTimeout            ErrorKind = "Timeout"
	ErrKindAssertionFailed    ErrorKind = "AssertionFailed"
	ErrKindCaptureFailed      ErrorKind = "CaptureFailed"
	ErrKindApprovalRequired   ErrorKind = "ApprovalRequired"
)

// Service-level sentinel errors mapped to HTTP statuses at the transport layer.
var (
	// ErrRunBusy is returned when an execute-next-step call arrives while
	// another dispatch for the same run is in flight.
	ErrRunBusy = errors.New("run busy")

	// ErrRunTerminal is returned for operations that require a non-terminal run.
	ErrRunTerminal = errors.New("run is terminal")

	// ErrNoPendingApproval is returned when a decision arrives but no
	// approval is pending for the run.
	ErrNoPendingApproval = errors.New("no pending approval")

	// ErrPlannerFailed marks an upstream planner failure so the transport
	// can answer 502 instead of 500.
	ErrPlannerFailed = errors.New("planner failed")
)

// StepError is a classified failure from preparing or executing a step.
type StepError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *StepError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError creates a StepError with the given kind and detail.
func NewStepError(kind ErrorKind, detail string) *StepError {
	return &StepError{Kind: kind, Detail: detail}
}

// StepErrorf creates a StepError with a formatted detail.
func StepErrorf(kind ErrorKind, format string, args ...any) *StepError {
	return &StepError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapStepError classifies an underlying error without losing it.
func WrapStepError(kind ErrorKind, detail string, err error) *StepError {
	return &StepError{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" when err is not a StepError.
func KindOf(err error) ErrorKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsResumable reports whether a step failure leaves the run dispatchable.
// Only session-level failures qualify: the next dispatch retries creation.
func IsResumable(err error) bool {
	return KindOf(err) == ErrKindSessionUnavailable
}

// StepErrorBody is the wire form of a classified step failure.
type StepErrorBody struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Body converts a StepError to its wire form.
func (e *StepError) Body() *StepErrorBody {
	return &StepErrorBody{Kind: e.Kind, Detail: e.Detail}
}
