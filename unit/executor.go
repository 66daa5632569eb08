// Package unit implements the Unit Executor (C6): the state machine that
// drives one DeploymentUnit through init/plan/validate/apply in an isolated
// workspace, handling locking, backup, and rollback.
package unit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lattice-iac/conductor/audit"
	"github.com/lattice-iac/conductor/execproc"
	"github.com/lattice-iac/conductor/log"
	"github.com/lattice-iac/conductor/metrics"
	"github.com/lattice-iac/conductor/policyengine"
	"github.com/lattice-iac/conductor/redact"
	"github.com/lattice-iac/conductor/statestore"
	"github.com/lattice-iac/conductor/types"
)

// Action is the batch-level action requested on the CLI, per §6.
type Action string

const (
	ActionPlan  Action = "plan"
	ActionApply Action = "apply"
)

// ProcRunner runs one child-process invocation. Overridable for testing so
// the state machine can be exercised with no real child processes.
type ProcRunner func(ctx context.Context, cfg execproc.Config, timeout time.Duration) (*execproc.Result, error)

// PolicyEvaluator runs the VALIDATE step. Overridable for testing.
type PolicyEvaluator func(ctx context.Context, enginePath, planJSONPath, policyDir string, timeout time.Duration) (policyengine.Report, error)

// Config configures one Executor shared across all units in a run.
type Config struct {
	IaCToolPath      string
	PolicyEnginePath string
	PolicyDir        string
	Backend          BackendConfig

	Store       statestore.Client
	AuditLogger *audit.Logger
	Metrics     *metrics.Collector
	Logger      *log.Logger

	WorkspaceRoot string

	InitTimeout  time.Duration
	PlanTimeout  time.Duration
	ApplyTimeout time.Duration
	LockTTL      time.Duration

	// Runner and Evaluator default to execproc.Run and policyengine.Evaluate.
	// Tests override them with fakes to avoid spawning real child processes.
	Runner    ProcRunner
	Evaluator PolicyEvaluator
}

// Executor drives one DeploymentUnit through its full lifecycle.
type Executor struct {
	cfg Config
}

// New builds an Executor from cfg. Zero timeouts fall back to default
// ceilings (120s/600s/1800s) and a lock TTL of 1.2x the apply timeout.
func New(cfg Config) *Executor {
	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 120 * time.Second
	}
	if cfg.PlanTimeout == 0 {
		cfg.PlanTimeout = 600 * time.Second
	}
	if cfg.ApplyTimeout == 0 {
		cfg.ApplyTimeout = 1800 * time.Second
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = statestore.DefaultLockTTL(cfg.ApplyTimeout)
	}
	if cfg.Runner == nil {
		cfg.Runner = execproc.Run
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = policyengine.Evaluate
	}
	return &Executor{cfg: cfg}
}

// Execute drives unit through init → plan → validate → (plan done | apply →
// applied/rolled back). Every per-unit error is recovered here into a
// terminal UnitOutcome; Execute itself never returns an error.
func (e *Executor) Execute(ctx context.Context, unit types.DeploymentUnit, action Action) *types.UnitOutcome {
	workspace, err := CreateWorkspace(e.cfg.WorkspaceRoot)
	if err != nil {
		return e.finish(ctx, unit, action, types.PhaseInitFailed, "", fmt.Sprintf("workspace creation failed: %v", err), false)
	}
	unit.WorkspacePath = workspace

	planOutPath := filepath.Join(workspace, "plan.out")
	planJSONPath := filepath.Join(workspace, "plan.json")

	outcome := func() *types.UnitOutcome {
		// Every external-process step below runs on an uncancelable derivative
		// of ctx: a batch-level cancellation must let the step already running
		// finish on its own phase deadline rather than killing the child
		// process outright (the same discipline as the rollback Copy below).
		stepCtx := context.WithoutCancel(ctx)

		// INIT
		initResult, err := e.cfg.Runner(stepCtx, execproc.Config{
			Path: e.cfg.IaCToolPath, Args: initArgs(unit, e.cfg.Backend), WorkDir: workspace,
		}, e.cfg.InitTimeout)
		if err != nil {
			return e.finish(ctx, unit, action, types.PhaseInitFailed, "", fmt.Sprintf("init: %v", err), true)
		}
		if initResult.ExitCode != 0 {
			return e.finish(ctx, unit, action, types.PhaseInitFailed, "", fmt.Sprintf("init exited %d: %s", initResult.ExitCode, initResult.Stderr), true)
		}

		// PLAN
		planResult, err := e.cfg.Runner(stepCtx, execproc.Config{
			Path: e.cfg.IaCToolPath, Args: planArgs(planOutPath), WorkDir: workspace,
		}, e.cfg.PlanTimeout)
		if err != nil {
			return e.finish(ctx, unit, action, types.PhasePlanFailed, "", fmt.Sprintf("plan: %v", err), true)
		}
		if planResult.ExitCode != 0 {
			return e.finish(ctx, unit, action, types.PhasePlanFailed, "", fmt.Sprintf("plan exited %d: %s", planResult.ExitCode, planResult.Stderr), true)
		}

		showResult, err := e.cfg.Runner(stepCtx, execproc.Config{
			Path: e.cfg.IaCToolPath, Args: showJSONArgs(planOutPath), WorkDir: workspace,
		}, e.cfg.PlanTimeout)
		if err != nil || showResult.ExitCode != 0 {
			return e.finish(ctx, unit, action, types.PhasePlanFailed, "", fmt.Sprintf("show -json: %v", err), true)
		}
		if err := os.WriteFile(planJSONPath, showResult.Stdout, 0o644); err != nil {
			return e.finish(ctx, unit, action, types.PhasePlanFailed, "", fmt.Sprintf("write plan json: %v", err), true)
		}

		// VALIDATE
		report, err := e.cfg.Evaluator(stepCtx, e.cfg.PolicyEnginePath, planJSONPath, e.cfg.PolicyDir, e.cfg.PlanTimeout)
		if err != nil {
			return e.finish(ctx, unit, action, types.PhasePlanFailed, "", fmt.Sprintf("policy engine: %v", err), true)
		}
		if report.Rejected() {
			// Internal artifact only: nothing outside this process ever reads
			// policy-report.msgpack back, so it carries no external wire
			// contract and is encoded with msgpack rather than JSON.
			policyReportPath := filepath.Join(workspace, "policy-report.msgpack")
			if body, marshalErr := msgpack.Marshal(report); marshalErr == nil {
				_ = os.WriteFile(policyReportPath, body, 0o644)
			}
			outcome := e.finishWithArtifacts(ctx, unit, action, types.PhasePolicyRejected, types.Artifacts{
				PlanJSONPath: planJSONPath, PlanTextPath: planOutPath, PolicyReportPath: policyReportPath,
			}, "", policyReportSummary(report), true)
			outcome.Violations = gateViolationsFromPolicyReport(report)
			return outcome
		}

		artifacts := types.Artifacts{PlanJSONPath: planJSONPath, PlanTextPath: planOutPath}

		if action == ActionPlan {
			return e.finishWithArtifacts(ctx, unit, action, types.PhasePlanned, artifacts, "", fmt.Sprintf("plan produced %d bytes", len(showResult.Stdout)), false)
		}

		// APPLY
		return e.apply(ctx, unit, action, workspace, planOutPath, artifacts)
	}()

	if outcome.PhaseReached != types.PhaseApplyFailedRollbackFailed {
		if rmErr := RemoveWorkspace(workspace); rmErr != nil && e.cfg.Logger != nil {
			e.cfg.Logger.Warn("workspace removal failed", map[string]any{"workspace": workspace, "error": rmErr.Error()})
		}
	}
	return outcome
}

func (e *Executor) apply(ctx context.Context, unit types.DeploymentUnit, action Action, workspace, planOutPath string, artifacts types.Artifacts) *types.UnitOutcome {
	ownerID := statestore.NewLockOwnerID()
	lockKey := types.LockKey(unit.StateKey)

	handle, err := statestore.AcquireLockWithRetry(ctx, e.cfg.Store, lockKey, ownerID, e.cfg.LockTTL, e.cfg.Metrics)
	if err != nil {
		if errors.Is(err, statestore.ErrLockBusyFinal) {
			e.cfg.Metrics.IncLockBusyFinal()
		}
		return e.finishWithArtifacts(ctx, unit, action, types.PhaseApplyAbortedLockBusy, artifacts, "", fmt.Sprintf("lock acquisition failed: %v", err), true)
	}

	backupKey := ""
	timestamp := time.Now().UTC().Format("20060102-150405")
	candidateBackupKey := types.BackupKey(unit.StateKey, timestamp)
	if copyErr := e.cfg.Store.Copy(ctx, unit.StateKey, candidateBackupKey, true); copyErr != nil {
		if !errors.Is(copyErr, statestore.ErrNotFound) {
			_ = e.cfg.Store.Release(ctx, handle)
			return e.finishWithArtifacts(ctx, unit, action, types.PhaseApplyFailedRolledBack, artifacts, "", fmt.Sprintf("backup failed: %v", copyErr), true)
		}
		// No prior state object: this is the unit's first apply, nothing to back up.
	} else {
		backupKey = candidateBackupKey
	}

	applyResult, applyErr := e.cfg.Runner(context.WithoutCancel(ctx), execproc.Config{
		Path: e.cfg.IaCToolPath, Args: applyArgs(planOutPath), WorkDir: workspace,
	}, e.cfg.ApplyTimeout)

	applyFailed := applyErr != nil || applyResult.ExitCode != 0
	if !applyFailed {
		_ = e.cfg.Store.Release(ctx, handle)
		return e.finishWithArtifacts(ctx, unit, action, types.PhaseApplied, artifacts, backupKey, fmt.Sprintf("apply exited 0: %s", applyResult.Stdout), false)
	}

	applyMsg := fmt.Sprintf("apply failed: %v", applyErr)
	if applyResult != nil {
		applyMsg = fmt.Sprintf("apply exited %d: %s", applyResult.ExitCode, applyResult.Stderr)
	}

	if backupKey == "" {
		// Nothing was applied before and nothing was backed up; state is untouched.
		_ = e.cfg.Store.Release(ctx, handle)
		return e.finishWithArtifacts(ctx, unit, action, types.PhaseApplyFailedRolledBack, artifacts, "", applyMsg, true)
	}

	// Rollback runs even if the pool's context has been canceled: a unit that
	// got as far as backup must not be left half-applied because the batch
	// was told to stop.
	rollbackCtx := context.WithoutCancel(ctx)
	if rbErr := e.cfg.Store.Copy(rollbackCtx, backupKey, unit.StateKey, true); rbErr != nil {
		// Lock is deliberately retained: the remote state may be inconsistent.
		outcome := e.finishWithArtifacts(rollbackCtx, unit, action, types.PhaseApplyFailedRollbackFailed, artifacts, backupKey, applyMsg+fmt.Sprintf("; rollback also failed: %v", rbErr), true)
		outcome.LockRetained = true
		return outcome
	}

	_ = e.cfg.Store.Release(rollbackCtx, handle)
	return e.finishWithArtifacts(ctx, unit, action, types.PhaseApplyFailedRolledBack, artifacts, backupKey, applyMsg, true)
}

func (e *Executor) finish(ctx context.Context, unit types.DeploymentUnit, action Action, phase types.Phase, backupKey, raw string, failure bool) *types.UnitOutcome {
	return e.finishWithArtifacts(ctx, unit, action, phase, types.Artifacts{}, backupKey, raw, failure)
}

func (e *Executor) finishWithArtifacts(ctx context.Context, unit types.DeploymentUnit, action Action, phase types.Phase, artifacts types.Artifacts, backupKey, raw string, failure bool) *types.UnitOutcome {
	outcome := &types.UnitOutcome{
		Unit:         unit,
		PhaseReached: phase,
		Artifacts:    artifacts,
		Summary:      redact.Redact(raw),
		Raw:          raw,
		BackupKey:    backupKey,
	}

	e.recordMetric(phase)

	// Audit append always runs on an uncancelable context: a terminal outcome
	// must be recorded even if the batch's context was canceled to get here.
	auditCtx := context.WithoutCancel(ctx)
	record := types.AuditRecord{
		Timestamp:           time.Now().UTC(),
		Action:              string(action),
		Unit:                unit,
		Result:              types.AuditResult{Success: !failure, Stdout: raw},
		BackupKey:           backupKey,
		OrchestratorVersion: types.Version,
	}
	if e.cfg.AuditLogger != nil {
		if err := e.cfg.AuditLogger.Append(auditCtx, record); err != nil {
			outcome.AuditDegraded = true
			e.cfg.Metrics.IncAuditFailures()
			if e.cfg.Logger != nil {
				e.cfg.Logger.Warn("audit append failed", map[string]any{"state_key": unit.StateKey, "error": err.Error()})
			}
		}
	}

	return outcome
}

func (e *Executor) recordMetric(phase types.Phase) {
	switch phase {
	case types.PhasePlanned:
		e.cfg.Metrics.IncUnitsPlanned()
	case types.PhaseInitFailed, types.PhasePlanFailed:
		e.cfg.Metrics.IncUnitsPlanFailed()
	case types.PhasePolicyRejected:
		e.cfg.Metrics.IncUnitsPolicyRejected()
	case types.PhaseApplied:
		e.cfg.Metrics.IncUnitsApplied()
	case types.PhaseApplyFailedRolledBack:
		e.cfg.Metrics.IncUnitsRolledBack()
	case types.PhaseApplyFailedRollbackFailed:
		e.cfg.Metrics.IncUnitsRollbackFailed()
	}
}

func policyReportSummary(report policyengine.Report) string {
	if len(report.Violations) == 0 {
		return ""
	}
	msg := report.Violations[0].Message
	if len(report.Violations) > 1 {
		msg = fmt.Sprintf("%s (+%d more)", msg, len(report.Violations)-1)
	}
	return msg
}

// gateViolationsFromPolicyReport surfaces every policy engine finding onto
// the UnitOutcome in the same GateViolation shape the Pre-Gate Validator
// uses, so a caller never has to special-case policy-engine rejections vs.
// Pre-Gate rejections to see why a unit was rejected.
func gateViolationsFromPolicyReport(report policyengine.Report) []types.GateViolation {
	if len(report.Violations) == 0 {
		return nil
	}
	violations := make([]types.GateViolation, len(report.Violations))
	for i, v := range report.Violations {
		detail := fmt.Sprintf("%s: %s (%s, severity=%s)", v.ResourceAddress, v.Message, v.RuleID, v.Severity)
		violations[i] = types.GateViolation{Code: v.RuleID, Detail: redact.Redact(detail)}
	}
	return violations
}
