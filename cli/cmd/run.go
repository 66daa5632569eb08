// Package cmd implements the conductor CLI's run command: the Orchestrator
// Entry (C9) that wires the Descriptor Classifier, Pre-Gate Validator,
// Worker Pool, Report Builder, and Reporter adapter into one batch run.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/lattice-iac/conductor/adapter"
	"github.com/lattice-iac/conductor/adapter/webhook"
	"github.com/lattice-iac/conductor/audit"
	conductorconfig "github.com/lattice-iac/conductor/cli/config"
	"github.com/lattice-iac/conductor/cli/render"
	"github.com/lattice-iac/conductor/descriptor"
	"github.com/lattice-iac/conductor/gate"
	"github.com/lattice-iac/conductor/iox"
	"github.com/lattice-iac/conductor/log"
	"github.com/lattice-iac/conductor/metrics"
	"github.com/lattice-iac/conductor/report"
	"github.com/lattice-iac/conductor/statestore"
	"github.com/lattice-iac/conductor/types"
	"github.com/lattice-iac/conductor/unit"
	"github.com/lattice-iac/conductor/workerpool"
)

// Exit codes per §6.
const (
	exitClean                = 0
	exitUnitError            = 2
	exitAmbiguousOrMisconfig = 3
	exitAuditFailureOnly     = 4
)

// RunCommand returns the run command: conductor's only execution entrypoint.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Classify, gate, and execute a batch of changed IaC descriptors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML config file (conductor.yaml)",
			},
			&cli.StringFlag{
				Name:     "action",
				Usage:    "plan or apply",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "changed-files",
				Usage:    "Descriptor paths to classify and execute (repeatable)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "requester",
				Usage:    "Requesting user's identity, checked by the Pre-Gate",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "rules",
				Usage:    "Path to the policy rules document (YAML)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "workspace-root",
				Usage: "Root directory under which per-unit workspaces are created",
			},
			&cli.IntFlag{
				Name:  "worker-cap",
				Usage: "Maximum concurrent workers (hard ceiling is 5)",
			},
			&cli.StringFlag{
				Name:  "report-output",
				Usage: "Where to write the JSON report document (\"-\" for stderr)",
				Value: "-",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the rendered terminal report",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	var cfg *conductorconfig.RunConfig
	if path := c.String("config"); path != "" {
		loaded, err := conductorconfig.Load(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitAmbiguousOrMisconfig)
		}
		cfg = loaded
	}

	action := c.String("action")
	if action != string(unit.ActionPlan) && action != string(unit.ActionApply) {
		return cli.Exit(fmt.Sprintf("--action must be %q or %q, got %q", unit.ActionPlan, unit.ActionApply, action), exitAmbiguousOrMisconfig)
	}

	workspaceRoot := resolveString(c, "workspace-root", configVal(cfg, func(c *conductorconfig.RunConfig) string { return c.WorkspaceRoot }))
	if workspaceRoot == "" {
		workspaceRoot = os.TempDir()
	}
	workerCap := resolveInt(c, "worker-cap", configVal2(cfg, func(c *conductorconfig.RunConfig) int { return c.WorkerCap }))

	rules, err := conductorconfig.LoadRules(c.String("rules"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load policy rules: %v", err), exitAmbiguousOrMisconfig)
	}

	runID := newRunID()
	requesterID := c.String("requester")
	collector := metrics.NewCollector(action, runID, requesterID)
	logger := log.NewLogger(log.Context{RunID: runID, RequesterID: requesterID, Action: action})

	store, err := buildStore(c.Context, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to build state store client: %v", err), exitAmbiguousOrMisconfig)
	}

	var auditRecipients []string
	if cfg != nil {
		auditRecipients = cfg.AuditRecipients
	}
	auditLogger := audit.NewLogger(store, auditRecipients)

	iacToolPath := "terraform"
	policyEnginePath := ""
	policyDir := ""
	var backend unit.BackendConfig
	var timeouts conductorconfig.TimeoutsConfig
	if cfg != nil {
		if cfg.IaCToolPath != "" {
			iacToolPath = cfg.IaCToolPath
		}
		policyEnginePath = cfg.PolicyEngine.BinaryPath
		policyDir = cfg.PolicyEngine.RulesPath
		backend = unit.BackendConfig{Bucket: cfg.Backend.Bucket, Encrypted: cfg.Backend.Encrypted}
		timeouts = cfg.Timeouts
		if err := cfg.ValidateLockTTL(timeouts.Apply.Duration); err != nil {
			return cli.Exit(err.Error(), exitAmbiguousOrMisconfig)
		}
	}

	executor := unit.New(unit.Config{
		IaCToolPath:      iacToolPath,
		PolicyEnginePath: policyEnginePath,
		PolicyDir:        policyDir,
		Backend:          backend,
		Store:            store,
		AuditLogger:      auditLogger,
		Metrics:          collector,
		Logger:           logger,
		WorkspaceRoot:    workspaceRoot,
		InitTimeout:      timeouts.Init.Duration,
		PlanTimeout:      timeouts.Plan.Duration,
		ApplyTimeout:     timeouts.Apply.Duration,
		LockTTL:          timeouts.Lock.Duration,
	})

	// Classify every changed descriptor.
	var units []types.DeploymentUnit
	var classificationFailures []report.GatedUnit
	for _, path := range c.StringSlice("changed-files") {
		contents, readErr := os.ReadFile(path)
		if readErr != nil {
			classificationFailures = append(classificationFailures, report.GatedUnit{
				StateKey:   path,
				SourcePath: path,
				Violations: []types.GateViolation{{Code: string(types.KindClassificationError), Detail: readErr.Error()}},
			})
			continue
		}
		u, classifyErr := descriptor.Classify(path, string(contents))
		if classifyErr != nil {
			classificationFailures = append(classificationFailures, report.GatedUnit{
				StateKey:   path,
				SourcePath: path,
				Violations: []types.GateViolation{{Code: string(types.KindClassificationError), Detail: classifyErr.Error()}},
			})
			continue
		}
		collector.IncUnitsClassified()
		units = append(units, u)
	}

	// Collapse duplicate state_keys: any collision makes the entire batch
	// ambiguous and aborts before anything touches the Worker Pool.
	survivors, duplicateKeys := collapseDuplicateStateKeys(units)
	if len(duplicateKeys) > 0 {
		for range duplicateKeys {
			collector.IncUnitsAmbiguous()
		}
		logger.Error("ambiguous batch: duplicate state keys", map[string]any{"duplicate_keys": duplicateKeys})
		return cli.Exit(fmt.Sprintf("ambiguous batch: %d state_key(s) claimed by more than one descriptor: %v", len(duplicateKeys), duplicateKeys), exitAmbiguousOrMisconfig)
	}

	// Pre-Gate: filter survivors against the rules document.
	var gated []report.GatedUnit
	var admitted []types.DeploymentUnit
	for _, u := range survivors {
		violations := gate.Gate(u, rules, requesterID)
		if len(violations) > 0 {
			collector.IncUnitsGated()
			gated = append(gated, report.GatedUnit{StateKey: u.StateKey, SourcePath: u.SourcePath, Violations: violations})
			continue
		}
		admitted = append(admitted, u)
	}
	gated = append(classificationFailures, gated...)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	unitAction := unit.Action(action)
	runner := func(runCtx context.Context, u types.DeploymentUnit) *types.UnitOutcome {
		return executor.Execute(runCtx, u, unitAction)
	}
	outcomes := workerpool.Run(ctx, admitted, workerCap, runner, collector)

	snap := collector.Snapshot()
	exitCode := computeExitCode(outcomes, gated)
	auditStorePath := fmt.Sprintf("audit/%s", runID)
	doc := report.Build(runID, requesterID, action, outcomes, gated, snap, auditStorePath, exitCode)

	if path := c.String("report-output"); path != "" {
		if writeErr := report.Write(doc, path); writeErr != nil {
			logger.Warn("failed to write report", map[string]any{"error": writeErr.Error()})
		}
	}
	if !c.Bool("quiet") {
		_ = render.Render(os.Stdout, doc)
	}

	if cfg != nil && cfg.Adapter.Type != "" {
		if err := notifyAdapter(ctx, cfg.Adapter, doc); err != nil {
			logger.Warn("reporter adapter notification failed", map[string]any{"error": err.Error()})
		}
	}

	return cli.Exit("", exitCode)
}

// computeExitCode reflects the most severe per-unit outcome per §6: a
// unit-level error (including a gated or classification-failed unit)
// outranks an audit-only degradation, which outranks a clean run.
func computeExitCode(outcomes []*types.UnitOutcome, gated []report.GatedUnit) int {
	hasUnitError := len(gated) > 0
	hasAuditDegraded := false
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if o.PhaseReached.IsErrorPhase() {
			hasUnitError = true
		}
		if o.AuditDegraded {
			hasAuditDegraded = true
		}
	}
	switch {
	case hasUnitError:
		return exitUnitError
	case hasAuditDegraded:
		return exitAuditFailureOnly
	default:
		return exitClean
	}
}

// buildStore constructs the State Store Client from config: an S3-compatible
// backend, optionally fronted by a Redis fast-path lock check.
func buildStore(ctx context.Context, cfg *conductorconfig.RunConfig) (statestore.Client, error) {
	if cfg == nil {
		return nil, errors.New("--config is required to configure the state store backend")
	}
	s3Client, err := statestore.NewS3Client(ctx, statestore.S3Config{
		Bucket:       cfg.Backend.Bucket,
		Region:       cfg.Backend.Region,
		Endpoint:     cfg.Backend.Endpoint,
		UsePathStyle: cfg.Backend.S3PathStyle,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Addr == "" {
		return s3Client, nil
	}
	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
	return statestore.NewRedisLockClient(s3Client, redisClient), nil
}

// notifyAdapter publishes the report document through the configured
// Reporter adapter. Adapter failures are logged but never affect the exit
// code: per §6 the Reporter's behavior is opaque to the orchestrator.
func notifyAdapter(ctx context.Context, cfg conductorconfig.AdapterConfig, doc *report.Document) error {
	var adpt adapter.Adapter
	var err error
	switch cfg.Type {
	case "webhook":
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		adpt, err = webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return fmt.Errorf("unknown adapter type: %q", cfg.Type)
	}
	if err != nil {
		return err
	}
	defer iox.DiscardClose(adpt)

	timeout := cfg.Timeout.Duration
	if timeout == 0 {
		timeout = webhook.DefaultTimeout
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return adpt.Publish(notifyCtx, doc)
}

// newRunID derives a filesystem- and object-key-safe run identifier.
func newRunID() string {
	return fmt.Sprintf("run-%s", time.Now().UTC().Format("20060102-150405.000000000"))
}

// resolveString returns the CLI flag value if explicitly set, else the
// config value if non-empty, else the urfave default.
func resolveString(c *cli.Context, flag string, configVal string) string {
	if c.IsSet(flag) {
		return c.String(flag)
	}
	if configVal != "" {
		return configVal
	}
	return c.String(flag)
}

// resolveInt returns the CLI flag value if explicitly set, else the config
// value if non-zero, else the urfave default.
func resolveInt(c *cli.Context, flag string, configVal int) int {
	if c.IsSet(flag) {
		return c.Int(flag)
	}
	if configVal != 0 {
		return configVal
	}
	return c.Int(flag)
}

// configVal safely extracts a string value from an optional config.
func configVal(cfg *conductorconfig.RunConfig, fn func(*conductorconfig.RunConfig) string) string {
	if cfg == nil {
		return ""
	}
	return fn(cfg)
}

// configVal2 safely extracts an int value from an optional config.
func configVal2(cfg *conductorconfig.RunConfig, fn func(*conductorconfig.RunConfig) int) int {
	if cfg == nil {
		return 0
	}
	return fn(cfg)
}
