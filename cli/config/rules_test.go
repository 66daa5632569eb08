package config

import "testing"

func TestLoadRules(t *testing.T) {
	yaml := `applications:
  inventory-svc:
    allowed_teams: [team-x]
    allowed_environments: [dev, prod]
    active: true
teams:
  team-x:
    members: [alice]
cost_centers:
  CC-01:
    authorized_teams: [team-x]
    active: true
`
	path := writeTemp(t, yaml)
	doc, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	app, ok := doc.Applications["inventory-svc"]
	if !ok || !app.Active {
		t.Fatalf("expected active inventory-svc application, got %+v ok=%v", app, ok)
	}
	if !app.Active {
		t.Error("expected inventory-svc active=true")
	}
}

func TestLoadRules_FileNotFound(t *testing.T) {
	if _, err := LoadRules("/nonexistent/rules.yaml"); err == nil {
		t.Fatal("expected error for missing rules file")
	}
}

func TestLoadRules_UnknownKeyRejected(t *testing.T) {
	yaml := `applications:
  inventory-svc:
    bogus_key: true
`
	path := writeTemp(t, yaml)
	if _, err := LoadRules(path); err == nil {
		t.Fatal("expected error for unknown key in rules document")
	}
}
