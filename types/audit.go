package types

import "time"

// AuditResult is the unredacted, full result text of a terminal outcome.
type AuditResult struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

// AuditRecord is one append-only, encrypted record of a terminal deployment
// outcome. Bodies are unredacted: the audit stream is the one place raw tool
// output is preserved in full.
type AuditRecord struct {
	Timestamp           time.Time      `json:"timestamp"`
	Action              string         `json:"action"`
	Unit                DeploymentUnit `json:"unit"`
	Result              AuditResult    `json:"result"`
	BackupKey           string         `json:"backup_key,omitempty"`
	OrchestratorVersion string         `json:"orchestrator_version"`
}
