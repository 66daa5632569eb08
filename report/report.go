// Package report implements the Report Builder (C8): aggregates the
// outcomes of one batch run into a structured document, redacting every
// free-text field exactly once.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lattice-iac/conductor/metrics"
	"github.com/lattice-iac/conductor/redact"
	"github.com/lattice-iac/conductor/types"
)

// UnitEntry is one unit's line in the report body.
type UnitEntry struct {
	StateKey     string          `json:"state_key"`
	PhaseReached types.Phase     `json:"phase_reached"`
	Summary      string          `json:"summary"`
	Artifacts    types.Artifacts `json:"artifacts"`
	BackupKey    string          `json:"backup_key,omitempty"`
	Violations   []types.GateViolation `json:"violations,omitempty"`
}

// Document is the structured aggregate report for one batch run, per §4.8.
type Document struct {
	RunID       string             `json:"run_id"`
	RequesterID string             `json:"requester_id"`
	Action      string             `json:"action"`
	ExitCode    int                `json:"exit_code"`

	CountsByPhase map[types.Phase]int `json:"counts_by_phase"`
	Units         []UnitEntry         `json:"units"`
	GateViolations []GatedUnit        `json:"gate_violations,omitempty"`

	Metrics metrics.Snapshot `json:"metrics"`

	AuditStorePath string `json:"audit_store_path"`
}

// GatedUnit is one unit dropped before execution by the Pre-Gate Validator.
type GatedUnit struct {
	StateKey   string                `json:"state_key"`
	SourcePath string                `json:"source_path"`
	Violations []types.GateViolation `json:"violations"`
}

// Build assembles a Document from the batch's unit outcomes and gated
// units. doc.Units preserves outcomes' order exactly as submitted — there is
// no ordering guarantee across units, so Build never reorders them; gated is
// the set of units the Pre-Gate rejected before the worker pool ever saw
// them. UnitOutcome.Summary has already passed through redact.Redact once in
// the Unit Executor and is carried through unchanged; GatedUnit violation
// details have not, so Build is the single point where they pass through
// the Redactor.
func Build(runID, requesterID, action string, outcomes []*types.UnitOutcome, gated []GatedUnit, snap metrics.Snapshot, auditStorePath string, exitCode int) *Document {
	doc := &Document{
		RunID:          runID,
		RequesterID:    requesterID,
		Action:         action,
		ExitCode:       exitCode,
		CountsByPhase:  map[types.Phase]int{},
		Units:          make([]UnitEntry, 0, len(outcomes)),
		GateViolations: redactGatedUnits(gated),
		Metrics:        snap,
		AuditStorePath: auditStorePath,
	}

	for _, o := range outcomes {
		if o == nil {
			continue
		}
		doc.CountsByPhase[o.PhaseReached]++
		doc.Units = append(doc.Units, UnitEntry{
			StateKey:     o.Unit.StateKey,
			PhaseReached: o.PhaseReached,
			Summary:      o.Summary, // already redacted once by unit.Executor
			Artifacts:    o.Artifacts,
			BackupKey:    o.BackupKey,
			Violations:   o.Violations,
		})
	}
	for _, g := range gated {
		doc.CountsByPhase[types.PhaseGated]++
	}

	return doc
}

// redactGatedUnits returns a copy of gated with every violation detail
// passed through redact.Redact, leaving the caller's slice untouched.
func redactGatedUnits(gated []GatedUnit) []GatedUnit {
	if gated == nil {
		return nil
	}
	out := make([]GatedUnit, len(gated))
	for i, g := range gated {
		violations := make([]types.GateViolation, len(g.Violations))
		for j, v := range g.Violations {
			violations[j] = types.GateViolation{Code: v.Code, Detail: redact.Redact(v.Detail)}
		}
		out[i] = GatedUnit{StateKey: g.StateKey, SourcePath: g.SourcePath, Violations: violations}
	}
	return out
}

// Write serializes doc as indented JSON to path. path "-" writes to stderr.
func Write(doc *Document, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		if _, err := os.Stderr.Write(data); err != nil {
			return fmt.Errorf("write report to stderr: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report to %s: %w", path, err)
	}
	return nil
}

// writeTo writes doc JSON to any writer (for testing).
func writeTo(doc *Document, w io.Writer) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
