package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/lattice-iac/conductor/metrics"
)

// lockBackoffSchedule is the capped exponential backoff applied between lock
// acquisition retries: 5s, 30s, 120s. Total attempts = 1 initial + 3 retries,
// following the same "attempts = 1 + retries" shape used elsewhere in this
// module for external-call retry (e.g. the webhook reporter adapter).
var lockBackoffSchedule = []time.Duration{5 * time.Second, 30 * time.Second, 120 * time.Second}

// ErrLockBusyFinal is returned once all retries in lockBackoffSchedule are
// exhausted and the lock is still held by another owner.
var ErrLockBusyFinal = errors.New("lock busy: retries exhausted")

// sleeper is overridable in tests to avoid real sleeps.
var sleeper = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AcquireLockWithRetry attempts to acquire the lock at key, retrying on
// ErrLockBusy per lockBackoffSchedule. Returns ErrLockBusyFinal once all
// retries are exhausted. m may be nil; every retry beyond the initial
// attempt is recorded on it.
func AcquireLockWithRetry(ctx context.Context, client Client, key, ownerID string, ttl time.Duration, m *metrics.Collector) (*LockHandle, error) {
	var lastErr error
	for attempt := 0; attempt <= len(lockBackoffSchedule); attempt++ {
		handle, err := client.AcquireLock(ctx, key, ownerID, ttl)
		if err == nil {
			return handle, nil
		}
		if !errors.Is(err, ErrLockBusy) {
			return nil, err
		}
		lastErr = err
		if attempt == len(lockBackoffSchedule) {
			break
		}
		m.IncLockRetries()
		if sleepErr := sleeper(ctx, lockBackoffSchedule[attempt]); sleepErr != nil {
			return nil, sleepErr
		}
	}
	_ = lastErr
	return nil, ErrLockBusyFinal
}
