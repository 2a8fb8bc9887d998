package domain

// Structured payloads attached to audit log entries. Handlers and the
// notify adapter rely on these staying JSON-stable.

type RunCreatedPayload struct {
	Task        string `json:"task,omitempty"`
	StartingURL string `json:"starting_url"`
	StepCount   int    `json:"step_count"`
}

type StepDispatchPayload struct {
	StepIndex   int    `json:"step_index"`
	StepID      string `json:"step_id"`
	Instruction string `json:"instruction"`
}

type StepExecutedPayload struct {
	StepIndex int    `json:"step_index"`
	StepID    string `json:"step_id"`
	Verb      string `json:"verb"`
	FinalURL  string `json:"final_url,omitempty"`
	Title     string `json:"title,omitempty"`
	Artifact  string `json:"artifact,omitempty"`
}

type StepFailedPayload struct {
	StepIndex int       `json:"step_index"`
	StepID    string    `json:"step_id"`
	Verb      string    `json:"verb,omitempty"`
	Arg       string    `json:"arg,omitempty"`
	Kind      ErrorKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
}

type StepSkippedPayload struct {
	StepIndex int    `json:"step_index"`
	StepID    string `json:"step_id"`
	Reason    string `json:"reason"`
}

type ApprovalPayload struct {
	ApprovalID string `json:"approval_id"`
	StepID     string `json:"step_id"`
	DecidedBy  string `json:"decided_by,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type SessionPayload struct {
	StartingURL string `json:"starting_url,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type SsrfBlockedPayload struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}
