// Package planner turns a task description into an executable UI plan.
package planner

import (
	"context"

	"github.com/uirun/uirun/internal/domain"
)

// Planner defines the interface for plan generation.
type Planner interface {
	// PlanTask produces a plan for the task. Snippets carry retrieved
	// brand context the planner may lean on.
	PlanTask(ctx context.Context, task string, snippets []domain.Snippet) (*domain.PlanSpec, error)
}

// Ensure both implementations satisfy the Planner interface.
var (
	_ Planner = (*HTTPPlanner)(nil)
	_ Planner = (*MockPlanner)(nil)
)
