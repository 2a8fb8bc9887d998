package domain

import "time"

// TaskRequest asks the planner to produce a plan for a natural-language task.
type TaskRequest struct {
	Task string `json:"task"`
	TopK int    `json:"top_k,omitempty"`
}

// TaskResponse returns the created run, the planner's plan, and the
// retrieval context that informed it.
type TaskResponse struct {
	RunID   string    `json:"run_id"`
	Task    string    `json:"task"`
	Plan    *PlanSpec `json:"plan"`
	Context []Snippet `json:"context,omitempty"`
}

// CreateRunRequest persists a validated plan as a new run.
type CreateRunRequest struct {
	Task        string         `json:"task,omitempty"`
	StartingURL string         `json:"starting_url"`
	Steps       []PlanStepSpec `json:"steps"`
}

// CreateRunResponse confirms creation of a run.
type CreateRunResponse struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	StartingURL string `json:"starting_url"`
	StepCount   int    `json:"step_count"`
}

// RunDetail is a run with its ordered steps and audit trail.
type RunDetail struct {
	Run   *Run       `json:"run"`
	Steps []Step     `json:"steps"`
	Logs  []LogEntry `json:"logs"`
}

// ExecuteStepResponse reports the outcome of one execute-next-step call.
type ExecuteStepResponse struct {
	RunID          string         `json:"run_id"`
	Status         RunStatus      `json:"status"`
	ExecutedStepID string         `json:"executed_step_id,omitempty"`
	StepStatus     StepStatus     `json:"step_status,omitempty"`
	Done           bool           `json:"done"`
	Error          *StepErrorBody `json:"error,omitempty"`
}

// ApprovalDecisionRequest resolves a pending approval.
type ApprovalDecisionRequest struct {
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Accepted ApprovalDecisionRequest.Decision values.
const (
	DecisionApprove = "approve"
	DecisionDeny    = "deny"
)

// BrandDocIn is a document submitted for indexing.
type BrandDocIn struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Source  string   `json:"source,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// IndexDocsRequest adds documents to the retrieval index. The optional
// dimension is passed through to the embedding backend.
type IndexDocsRequest struct {
	Docs               []BrandDocIn `json:"docs"`
	EmbeddingDimension int          `json:"embedding_dimension,omitempty"`
}

// IndexDocsResponse confirms indexing.
type IndexDocsResponse struct {
	Indexed int `json:"indexed"`
}

// RunSummary is the list-view projection of a run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Task      string    `json:"task,omitempty"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
