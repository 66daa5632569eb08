package types

import (
	"fmt"
	"strings"
)

// Service is a member of the fixed vocabulary a descriptor can declare.
type Service string

const (
	ServiceObjectStore Service = "object-store"
	ServiceKMS         Service = "kms"
	ServiceIAM         Service = "iam"
	ServiceComputeFn   Service = "compute-fn"
	ServiceRDBMS       Service = "rdbms"
	ServiceQueue       Service = "queue"
	ServiceTopic       Service = "topic"
)

// UnitMetadata is the governance metadata extracted from a descriptor.
// Absent fields are left as empty strings and are rejected by the Pre-Gate
// when policy requires them.
type UnitMetadata struct {
	Application string
	Team        string
	CostCenter  string
	Environment string
}

// DeploymentUnit is one atomic IaC lifecycle, identified by a stable state key.
type DeploymentUnit struct {
	SourcePath    string
	Project       string
	AccountName   string
	Region        string
	Services      []Service
	StateKey      string
	Metadata      UnitMetadata
	WorkspacePath string
}

// StateKey derives the canonical state key for a unit per the data model:
// {service}/{account}/{region}/{project}/state when exactly one service is
// declared, otherwise combined/{account}/{region}/{project}/state.
//
// StateKey is a pure function of its inputs: identical (services, account,
// region, project) always yield a byte-identical key.
func StateKey(services []Service, accountName, region, project string) string {
	if len(services) == 1 {
		return fmt.Sprintf("%s/%s/%s/%s/state", services[0], accountName, region, project)
	}
	return fmt.Sprintf("combined/%s/%s/%s/state", accountName, region, project)
}

// BackupKey derives the backup object key for a state key at a given timestamp.
// timestamp must already be formatted as yyyymmdd-hhmmss by the caller.
func BackupKey(stateKey, timestamp string) string {
	return fmt.Sprintf("backups/%s.%s.backup", stateKey, timestamp)
}

// LockKey derives the sidecar lock object key for a state key.
func LockKey(stateKey string) string {
	return stateKey + ".lock"
}

// ParsedStateKey is the reconstructed decomposition of a state key string.
type ParsedStateKey struct {
	ServiceOrCombined string
	AccountName       string
	Region            string
	Project           string
}

// ParseStateKey reconstructs the (service|combined, account, region, project)
// tuple from a canonical state key string produced by StateKey.
func ParseStateKey(key string) (ParsedStateKey, error) {
	const suffix = "/state"
	if !strings.HasSuffix(key, suffix) {
		return ParsedStateKey{}, fmt.Errorf("state key %q: missing %q suffix", key, suffix)
	}
	trimmed := strings.TrimSuffix(key, suffix)
	parts := strings.Split(trimmed, "/")
	if len(parts) != 4 {
		return ParsedStateKey{}, fmt.Errorf("state key %q: expected 4 path segments before %q, got %d", key, suffix, len(parts))
	}
	return ParsedStateKey{
		ServiceOrCombined: parts[0],
		AccountName:       parts[1],
		Region:            parts[2],
		Project:           parts[3],
	}, nil
}

// AuditKey derives the audit object key for a terminal outcome.
func AuditKey(accountName, project, action, timestamp string) string {
	return fmt.Sprintf("audit/%s/%s/%s-%s.json", accountName, project, action, timestamp)
}
