// Package domain defines the core domain models for the run engine.
package domain

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusCreated          RunStatus = "CREATED"
	RunStatusRunning          RunStatus = "RUNNING"
	RunStatusAwaitingApproval RunStatus = "AWAITING_APPROVAL"
	RunStatusDone             RunStatus = "DONE"
	RunStatusError            RunStatus = "ERROR"
)

// StepStatus represents the status of a step within a run. A step's status
// only moves forward: PENDING to exactly one of the terminal states.
type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusExecuted StepStatus = "EXECUTED"
	StepStatusFailed   StepStatus = "FAILED"
	StepStatusSkipped  StepStatus = "SKIPPED"
)

// StepKind separates browser-visible steps from non-UI (write) steps.
type StepKind string

const (
	StepKindUI    StepKind = "ui"
	StepKindNonUI StepKind = "non_ui"
)

// LogLevel represents the level of an audit log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// ApprovalStatus represents the status of an approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusDenied   ApprovalStatus = "DENIED"
)

// Audit log messages, one per observable engine event. The message is the
// stable part of a LogEntry; details ride in the payload.
const (
	LogMsgRunCreated        = "run created"
	LogMsgExecutingStep     = "executing step"
	LogMsgStepExecuted      = "step executed"
	LogMsgStepFailed        = "step failed"
	LogMsgStepSkipped       = "step skipped"
	LogMsgApprovalRequested = "approval requested"
	LogMsgApprovalGranted   = "approval granted"
	LogMsgApprovalDenied    = "approval denied"
	LogMsgSessionOpened     = "session opened"
	LogMsgSessionClosed     = "session closed"
	LogMsgSessionReclaimed  = "session idle reclaimed"
	LogMsgSsrfBlocked       = "navigation blocked"
)
