// Package config handles YAML config file loading for conductor run.
package config

import (
	"fmt"
	"time"
)

// RunConfig represents a conductor.yaml configuration file. All values are
// optional and act as defaults for conductor run flags; CLI flags always
// override config values.
type RunConfig struct {
	WorkerCap       int            `yaml:"worker_cap"`
	WorkspaceRoot   string         `yaml:"workspace_root"`
	IaCToolPath     string         `yaml:"iac_tool_path"`
	Backend         BackendConfig  `yaml:"backend"`
	PolicyEngine    PolicyEngine   `yaml:"policy_engine"`
	Timeouts        TimeoutsConfig `yaml:"timeouts"`
	Redis           RedisConfig    `yaml:"redis"`
	Adapter         AdapterConfig  `yaml:"adapter"`
	AuditRecipients []string       `yaml:"audit_recipients,omitempty"`
}

// BackendConfig names the remote state backend: an S3-compatible bucket the
// IaC tool child process is pointed at, plus the State Store Client's own
// connection details.
type BackendConfig struct {
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	Encrypted   bool   `yaml:"encrypted"`
}

// PolicyEngine locates the external policy engine binary and its rules.
type PolicyEngine struct {
	BinaryPath string `yaml:"binary_path"`
	RulesPath  string `yaml:"rules_path"`
}

// TimeoutsConfig holds the per-phase child-process ceilings from §4.6.
// Zero fields fall back to the Unit Executor's built-in defaults.
type TimeoutsConfig struct {
	Init  Duration `yaml:"init,omitempty"`
	Plan  Duration `yaml:"plan,omitempty"`
	Apply Duration `yaml:"apply,omitempty"`
	Lock  Duration `yaml:"lock,omitempty"`
}

// RedisConfig configures the optional fast-path distributed lock. The
// sidecar object lock remains canonical; Redis, when configured, is tried
// first and falls through to the object lock on any Redis error.
type RedisConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// AdapterConfig holds reporter adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// lockTTLFloorFactor is the minimum lock TTL allowed relative to the apply
// timeout, per the adopted 1.2x floor (DESIGN.md Open Question 3). A
// configured TTL below this floor is rejected, never silently raised.
const lockTTLFloorFactor = 1.2

// ValidateLockTTL reports whether a configured lock TTL meets the 1.2x
// apply-timeout floor. A zero configured TTL is valid (defaults apply).
func (c *RunConfig) ValidateLockTTL(applyTimeout time.Duration) error {
	if c.Timeouts.Lock.Duration == 0 {
		return nil
	}
	floor := time.Duration(float64(applyTimeout) * lockTTLFloorFactor)
	if c.Timeouts.Lock.Duration < floor {
		return fmt.Errorf("configured lock ttl %s is below the %.1fx apply-timeout floor (%s)",
			c.Timeouts.Lock.Duration, lockTTLFloorFactor, floor)
	}
	return nil
}
