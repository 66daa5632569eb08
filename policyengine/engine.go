// Package policyengine invokes the external policy engine binary against a
// plan artifact and decides whether the plan is rejected. The engine
// receives the full plan JSON and policy directory and selects its own
// rules; descriptor-declared services are not threaded into the invocation
// (see DESIGN.md Open Question 2).
package policyengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lattice-iac/conductor/execproc"
)

// Severity is a policy violation severity level.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Violation is one policy engine finding.
type Violation struct {
	Severity        Severity `json:"severity"`
	ResourceAddress string   `json:"resource_address"`
	Message         string   `json:"message"`
	RuleID          string   `json:"rule_id"`
	MissingFields   []string `json:"missing_fields,omitempty"`
}

// Report is the policy engine's JSON output.
type Report struct {
	Violations []Violation `json:"violations"`
}

// Rejected reports whether the plan is rejected: the canonical rule adopted
// here is "any violation with severity=critical blocks" (DESIGN.md Open
// Question 1).
func (r Report) Rejected() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ErrEngineCrashed is returned when the policy engine exits without
// producing a parseable JSON report.
var ErrEngineCrashed = errors.New("policy engine produced no parseable report")

// Evaluate runs `<enginePath> evaluate <planJSONPath> <policyDir>` and parses
// its JSON report. The report is parsed from stdout regardless of exit
// status, since the engine may legitimately exit non-zero to signal a
// rejection while still emitting a valid report.
func Evaluate(ctx context.Context, enginePath, planJSONPath, policyDir string, timeout time.Duration) (Report, error) {
	result, err := execproc.Run(ctx, execproc.Config{
		Path: enginePath,
		Args: []string{"evaluate", planJSONPath, policyDir},
	}, timeout)
	if err != nil {
		return Report{}, fmt.Errorf("run policy engine: %w", err)
	}

	var report Report
	if jsonErr := json.Unmarshal(result.Stdout, &report); jsonErr != nil {
		return Report{}, fmt.Errorf("%w: %s", ErrEngineCrashed, string(result.Stderr))
	}
	return report, nil
}
