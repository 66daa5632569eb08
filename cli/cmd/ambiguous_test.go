package cmd

import (
	"testing"

	"github.com/lattice-iac/conductor/types"
)

func unit(stateKey string) types.DeploymentUnit {
	return types.DeploymentUnit{StateKey: stateKey, SourcePath: stateKey + ".tf"}
}

func TestCollapseDuplicateStateKeys_NoDuplicates(t *testing.T) {
	units := []types.DeploymentUnit{unit("a"), unit("b"), unit("c")}
	survivors, dups := collapseDuplicateStateKeys(units)
	if len(dups) != 0 {
		t.Fatalf("expected no duplicates, got %v", dups)
	}
	if len(survivors) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(survivors))
	}
}

func TestCollapseDuplicateStateKeys_OneDuplicateGroup(t *testing.T) {
	units := []types.DeploymentUnit{unit("a"), unit("b"), unit("a")}
	survivors, dups := collapseDuplicateStateKeys(units)
	if len(dups) != 1 || dups[0] != "a" {
		t.Fatalf("expected duplicate key 'a', got %v", dups)
	}
	if len(survivors) != 1 || survivors[0].StateKey != "b" {
		t.Fatalf("expected only 'b' to survive, got %v", survivors)
	}
}

func TestCollapseDuplicateStateKeys_AllDuplicates(t *testing.T) {
	units := []types.DeploymentUnit{unit("a"), unit("a")}
	survivors, dups := collapseDuplicateStateKeys(units)
	if len(dups) != 1 {
		t.Fatalf("expected 1 duplicate key, got %v", dups)
	}
	if len(survivors) != 0 {
		t.Fatalf("expected no survivors, got %v", survivors)
	}
}

func TestCollapseDuplicateStateKeys_EmptyInput(t *testing.T) {
	survivors, dups := collapseDuplicateStateKeys(nil)
	if len(survivors) != 0 || len(dups) != 0 {
		t.Fatalf("expected empty results for empty input, got survivors=%v dups=%v", survivors, dups)
	}
}
