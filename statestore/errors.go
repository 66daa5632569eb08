// Package statestore implements the State Store Client (C4): object-store
// operations against the remote state backend, plus the distributed lock
// protocol brokered through a sidecar object.
package statestore

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for storage failure classification. Use errors.Is(err, ErrXxx).
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAccessDenied     = errors.New("access denied")
	ErrThrottled        = errors.New("rate limited")
	ErrTimeout          = errors.New("operation timed out")
	ErrAuth             = errors.New("authentication failed")
	ErrNetwork          = errors.New("network error")
	ErrLockBusy         = errors.New("lock busy")
)

// StoreError wraps an underlying error with storage classification, an
// operation name, and the key it was operating on.
type StoreError struct {
	Kind error
	Op   string
	Key  string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Key, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return errors.Is(e.Kind, target) }

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Kind: classify(err), Op: op, Key: key, Err: err}
}

type errorPattern struct {
	patterns []string
	kind     error
}

// classifierTable: entries checked in order, first match wins. More specific
// patterns appear before general ones.
var classifierTable = []errorPattern{
	{[]string{"AccessDenied", "Forbidden", "403"}, ErrAccessDenied},
	{[]string{"permission denied", "EACCES"}, ErrPermissionDenied},
	{[]string{"no such key", "NoSuchKey", "not found", "404", "does not exist"}, ErrNotFound},
	{[]string{"timeout", "timed out", "deadline exceeded"}, ErrTimeout},
	{[]string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}, ErrThrottled},
	{[]string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}, ErrAuth},
	{[]string{"connection refused", "no route to host", "network unreachable",
		"DNS", "dial tcp", "i/o timeout"}, ErrNetwork},
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}
	errStr := err.Error()
	for _, entry := range classifierTable {
		if containsAny(errStr, entry.patterns...) {
			return entry.kind
		}
	}
	return errors.New("storage error")
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
