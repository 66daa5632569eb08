package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lattice-iac/conductor/metrics"
	"github.com/lattice-iac/conductor/report"
	"github.com/lattice-iac/conductor/types"
)

func TestRender_IncludesRunAndUnits(t *testing.T) {
	doc := report.Build("run-1", "alice", "apply", []*types.UnitOutcome{
		{
			Unit:         types.DeploymentUnit{StateKey: "object-store/acct-1/us-east-1/orders/state"},
			PhaseReached: types.PhaseApplied,
			Summary:      "applied 2 resources",
		},
	}, nil, metrics.Snapshot{}, "audit/acct-1", 0)

	var buf bytes.Buffer
	if err := Render(&buf, doc); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "run-1") {
		t.Error("expected output to contain run id")
	}
	if !strings.Contains(out, "object-store/acct-1/us-east-1/orders/state") {
		t.Error("expected output to contain state key")
	}
	if !strings.Contains(out, "applied 2 resources") {
		t.Error("expected output to contain unit summary")
	}
}

func TestRender_IncludesGateViolations(t *testing.T) {
	doc := report.Build("run-1", "alice", "plan", nil, []report.GatedUnit{
		{StateKey: "iam/acct-1/us-east-1/role/state", Violations: []types.GateViolation{
			{Code: "team_unknown", Detail: "team unknown"},
		}},
	}, metrics.Snapshot{}, "audit/acct-1", 3)

	var buf bytes.Buffer
	if err := Render(&buf, doc); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "team_unknown") {
		t.Error("expected output to contain gate violation code")
	}
}
