package domain

import (
	"encoding/json"
	"time"
)

// Run represents a single execution of a validated plan against a task.
type Run struct {
	RunID       string          `json:"run_id"`
	Task        string          `json:"task"`
	Status      RunStatus       `json:"status"`
	StartingURL string          `json:"starting_url"`
	Error       json.RawMessage `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Step is one DSL instruction within a run's plan. Verb and Arg are the
// normalized split of Instruction produced at plan validation.
type Step struct {
	RunID            string     `json:"run_id"`
	StepID           string     `json:"step_id"`
	Idx              int        `json:"idx"`
	Kind             StepKind   `json:"kind"`
	Instruction      string     `json:"instruction"`
	Verb             string     `json:"verb"`
	Arg              string     `json:"arg"`
	RequiresApproval bool       `json:"requires_approval"`
	Status           StepStatus `json:"status"`
	ExecutedAt       *time.Time `json:"executed_at,omitempty"`
}

// LogEntry is one append-only audit record for a run, ordered by Seq.
// Seq is strictly increasing within a run and never reused.
type LogEntry struct {
	RunID   string          `json:"run_id"`
	Seq     int64           `json:"seq"`
	Ts      time.Time       `json:"ts"`
	Level   LogLevel        `json:"level"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Approval represents a human gate on a step flagged requires_approval.
type Approval struct {
	ApprovalID string         `json:"approval_id"`
	RunID      string         `json:"run_id"`
	StepID     string         `json:"step_id"`
	Status     ApprovalStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
	DecidedBy  string         `json:"decided_by,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// Artifact records one immutable capture written through the artifact bridge.
// Path is the public address the bytes are served from.
type Artifact struct {
	RunID     string    `json:"run_id"`
	StepID    string    `json:"step_id"`
	Label     string    `json:"label"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// BrandDoc is one indexed brand-kit document with its embedding vector.
type BrandDoc struct {
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Tags      string    `json:"tags,omitempty"`
	Embedding []float64 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Snippet is one retrieved context chunk handed to the planner.
type Snippet struct {
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
