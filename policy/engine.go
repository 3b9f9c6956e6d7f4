// Package policy evaluates deployment admission policy with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.deploy_policy.decision"),
		rego.Module("deploy_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Input describes a deployment creation request for policy evaluation.
type Input struct {
	Platform     string `json:"platform"`
	ReleaseCount int    `json:"release_count"`
}

// Evaluate checks the deployment policy. Returns the decision (allow or
// block). The policy is expected to define a default decision.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "allow", nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "allow", nil
}

// DefaultPolicy is the default deployment admission policy.
const DefaultPolicy = `
package deploy_policy

default decision = "allow"

# Never queue work for an agent whose platform was never identified.
decision = "block" {
	input.platform == "unknown"
}

# Cap the batch size of a single deployment.
decision = "block" {
	input.release_count > 16
}
`
