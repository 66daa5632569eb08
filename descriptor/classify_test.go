package descriptor

import (
	"testing"

	"github.com/lattice-iac/conductor/types"
)

const happyDescriptor = `
account_name = "acc1"
region = ["region-1"]
application = "inventory-svc"
team = "team-x"
cost_center = "CC-01"
environment = "dev"

object_store_buckets = {
  "b1" = {
    versioning = "enabled"
  }
}
`

func TestClassifyHappyPathSingleService(t *testing.T) {
	unit, err := Classify("store/proj-a/proj-a.conf", happyDescriptor)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if unit.Project != "proj-a" {
		t.Errorf("Project = %q, want %q", unit.Project, "proj-a")
	}
	if unit.AccountName != "acc1" || unit.Region != "region-1" {
		t.Errorf("AccountName/Region = %q/%q, want acc1/region-1", unit.AccountName, unit.Region)
	}
	if len(unit.Services) != 1 || unit.Services[0] != types.ServiceObjectStore {
		t.Errorf("Services = %v, want [object-store]", unit.Services)
	}
	wantKey := "object-store/acc1/region-1/proj-a/state"
	if unit.StateKey != wantKey {
		t.Errorf("StateKey = %q, want %q", unit.StateKey, wantKey)
	}
	if unit.Metadata.Application != "inventory-svc" || unit.Metadata.Team != "team-x" {
		t.Errorf("Metadata = %+v, unexpected", unit.Metadata)
	}
}

func TestClassifyMultiServiceUsesCombinedKey(t *testing.T) {
	contents := `
account_name = "acc1"
region = ["region-1"]
kms_keys = {
  "k1" = { }
}
iam_roles = {
  "r1" = { }
}
`
	unit, err := Classify("store/proj-b/proj-b.conf", contents)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	want := "combined/acc1/region-1/proj-b/state"
	if unit.StateKey != want {
		t.Errorf("StateKey = %q, want %q", unit.StateKey, want)
	}
}

func TestClassifyMissingMetadataFails(t *testing.T) {
	contents := `
object_store_buckets = {
  "b1" = { }
}
`
	_, err := Classify("store/proj-a/proj-a.conf", contents)
	var cerr *ClassificationError
	if err == nil {
		t.Fatal("Classify() expected error, got nil")
	}
	if !asClassificationError(err, &cerr) || cerr.Kind != KindMissingMetadata {
		t.Errorf("Classify() error = %v, want kind %s", err, KindMissingMetadata)
	}
}

func TestClassifyNoServiceDetectedFails(t *testing.T) {
	contents := `
account_name = "acc1"
region = ["region-1"]
`
	_, err := Classify("store/proj-a/proj-a.conf", contents)
	var cerr *ClassificationError
	if err == nil {
		t.Fatal("Classify() expected error, got nil")
	}
	if !asClassificationError(err, &cerr) || cerr.Kind != KindNoServiceDetected {
		t.Errorf("Classify() error = %v, want kind %s", err, KindNoServiceDetected)
	}
}

func TestClassifyMissingProjectFails(t *testing.T) {
	_, err := Classify("proj-a.conf", happyDescriptor)
	var cerr *ClassificationError
	if err == nil {
		t.Fatal("Classify() expected error, got nil")
	}
	if !asClassificationError(err, &cerr) || cerr.Kind != KindMissingProject {
		t.Errorf("Classify() error = %v, want kind %s", err, KindMissingProject)
	}
}

func TestStateKeyIsPureFunctionOfPathContents(t *testing.T) {
	u1, err1 := Classify("store/proj-a/proj-a.conf", happyDescriptor)
	u2, err2 := Classify("store/proj-a/proj-a.conf", happyDescriptor)
	if err1 != nil || err2 != nil {
		t.Fatalf("Classify() errors = %v, %v", err1, err2)
	}
	if u1.StateKey != u2.StateKey {
		t.Errorf("StateKey not pure: %q != %q", u1.StateKey, u2.StateKey)
	}
}

func asClassificationError(err error, target **ClassificationError) bool {
	ce, ok := err.(*ClassificationError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
