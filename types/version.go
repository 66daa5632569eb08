package types

// Version is the orchestrator's own version, recorded on every AuditRecord.
const Version = "0.6.1"
