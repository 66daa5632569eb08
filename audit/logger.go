// Package audit implements the Audit Logger (C5): synchronous, encrypted,
// append-only records of every terminal deployment outcome.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lattice-iac/conductor/statestore"
	"github.com/lattice-iac/conductor/types"
)

// Logger appends encrypted AuditRecords to the state store under
// audit/{account_name}/{project}/{action}-{timestamp}.json.
type Logger struct {
	store      statestore.Client
	recipients []string
}

// NewLogger builds a Logger writing through store, encrypting record bodies
// for the given age recipients.
func NewLogger(store statestore.Client, recipients []string) *Logger {
	return &Logger{store: store, recipients: recipients}
}

// Append synchronously writes an encrypted object for record. record.Result
// carries the unredacted raw text; bodies are unredacted by design — the
// audit stream is the one place raw tool output survives in full.
//
// A failure here is the caller's responsibility to treat as non-fatal: per
// the originating contract, a failed audit write must not fail the
// enclosing unit operation, only set UnitOutcome.AuditDegraded.
func (l *Logger) Append(ctx context.Context, record types.AuditRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	ciphertext, err := encryptRecord(body, l.recipients)
	if err != nil {
		return fmt.Errorf("encrypt audit record: %w", err)
	}

	key := types.AuditKey(record.Unit.AccountName, record.Unit.Project, record.Action, timestampTag(record.Timestamp))
	if err := l.store.Put(ctx, key, ciphertext, true); err != nil {
		return fmt.Errorf("write audit record %s: %w", key, err)
	}
	return nil
}

func timestampTag(t time.Time) string {
	return t.Format("20060102-150405")
}
