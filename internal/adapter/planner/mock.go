package planner

import (
	"context"

	"github.com/uirun/uirun/internal/domain"
)

// MockPlanner is a mock implementation of Planner for testing and
// offline development. It plans the demo-site login regardless of task.
type MockPlanner struct{}

// NewMockPlanner creates a new mock planner.
func NewMockPlanner() *MockPlanner {
	return &MockPlanner{}
}

// PlanTask returns a canned plan against the demo site.
func (m *MockPlanner) PlanTask(ctx context.Context, task string, snippets []domain.Snippet) (*domain.PlanSpec, error) {
	return &domain.PlanSpec{
		StartingURL: "https://the-internet.herokuapp.com/login",
		Steps: []domain.PlanStepSpec{
			{ID: "S1", Type: domain.PlanStepTypeUI, Instruction: "WAIT_URL_CONTAINS: /login", Evidence: "login form lives on /login"},
			{ID: "S2", Type: domain.PlanStepTypeUI, Instruction: "TYPE_ID: username=tomsmith", Evidence: "demo credentials"},
			{ID: "S3", Type: domain.PlanStepTypeUI, Instruction: "TYPE_ID: password=SuperSecretPassword!", Evidence: "demo credentials"},
			{ID: "S4", Type: domain.PlanStepTypeUI, Instruction: `CLICK_CSS: button[type="submit"]`, Evidence: "submit the form"},
			{ID: "S5", Type: domain.PlanStepTypeUI, Instruction: "ASSERT_TEXT: You logged into a secure area", Evidence: "success banner"},
			{ID: "S6", Type: domain.PlanStepTypeUI, Instruction: "SCREENSHOT: done", Evidence: "capture the result"},
		},
	}, nil
}
