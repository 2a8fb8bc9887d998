package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/uirun/uirun/internal/domain"
)

// Decisions a step policy can return.
const (
	DecisionAllow           = "allow"
	DecisionRequireApproval = "require_approval"
	DecisionBlock           = "block"
)

// Engine is the OPA policy engine gating step execution.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.step_policy.decision"),
		rego.Module("step_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// FromFile builds an engine from a rego file, falling back to the
// default policy when path is empty.
func FromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate runs the prepared query against an arbitrary input map.
// Returns: decision (allow, require_approval, block), reason (optional), error.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy is expected to define a default decision.
		return DecisionAllow, "default", nil
	}

	val := results[0].Expressions[0].Value
	if s, ok := val.(string); ok {
		return s, "", nil
	}

	return DecisionAllow, "unexpected return type", nil
}

// EvaluateStep runs the step policy for one planned step.
func (e *Engine) EvaluateStep(ctx context.Context, step *domain.Step) (string, string, error) {
	input := map[string]interface{}{
		"verb":              step.Verb,
		"arg":               step.Arg,
		"kind":              string(step.Kind),
		"requires_approval": step.RequiresApproval,
	}
	return e.Evaluate(ctx, input)
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package step_policy

default decision = "allow"

# Steps the planner marked sensitive stop for a human first.
decision = "require_approval" {
	input.requires_approval == true
}
`
