package domain

// PlanSpec is a run plan as submitted by a client or produced by the planner.
type PlanSpec struct {
	StartingURL string         `json:"starting_url"`
	Steps       []PlanStepSpec `json:"steps"`
}

// PlanStepSpec is one planned step before validation assigns positions.
type PlanStepSpec struct {
	ID               string `json:"id,omitempty"`
	Type             string `json:"type,omitempty"`
	Instruction      string `json:"instruction"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
	Evidence         string `json:"evidence,omitempty"`
}

// Step kinds accepted in PlanStepSpec.Type. Anything else is rejected
// at validation time.
const (
	PlanStepTypeUI    = "ui"
	PlanStepTypeWrite = "write"
)
