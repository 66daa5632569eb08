package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/lattice-iac/conductor/metrics"
)

// fakeLockClient implements Client, failing AcquireLock a fixed number of
// times with ErrLockBusy before succeeding (or never succeeding).
type fakeLockClient struct {
	Client
	failuresRemaining int
}

func (f *fakeLockClient) AcquireLock(ctx context.Context, key, ownerID string, ttl time.Duration) (*LockHandle, error) {
	if f.failuresRemaining > 0 {
		f.failuresRemaining--
		return nil, ErrLockBusy
	}
	return &LockHandle{Key: key, OwnerID: ownerID, AcquiredAt: time.Now()}, nil
}

func TestAcquireLockWithRetrySucceedsAfterBusy(t *testing.T) {
	origSleeper := sleeper
	defer func() { sleeper = origSleeper }()
	sleepCount := 0
	sleeper = func(ctx context.Context, d time.Duration) error {
		sleepCount++
		return nil
	}

	client := &fakeLockClient{failuresRemaining: 2}
	handle, err := AcquireLockWithRetry(context.Background(), client, "k", "owner", time.Minute, nil)
	if err != nil {
		t.Fatalf("AcquireLockWithRetry() error = %v", err)
	}
	if handle == nil {
		t.Fatal("AcquireLockWithRetry() returned nil handle on success")
	}
	if sleepCount != 2 {
		t.Errorf("sleepCount = %d, want 2 backoff waits before success", sleepCount)
	}
}

func TestAcquireLockWithRetryExhaustsToFinal(t *testing.T) {
	origSleeper := sleeper
	defer func() { sleeper = origSleeper }()
	sleeper = func(ctx context.Context, d time.Duration) error { return nil }

	client := &fakeLockClient{failuresRemaining: 1000}
	_, err := AcquireLockWithRetry(context.Background(), client, "k", "owner", time.Minute, nil)
	if err != ErrLockBusyFinal {
		t.Errorf("AcquireLockWithRetry() error = %v, want ErrLockBusyFinal", err)
	}
}

func TestAcquireLockWithRetryPropagatesNonBusyErrors(t *testing.T) {
	client := &erroringLockClient{}
	_, err := AcquireLockWithRetry(context.Background(), client, "k", "owner", time.Minute, nil)
	if err == nil {
		t.Fatal("AcquireLockWithRetry() expected error to propagate immediately")
	}
}

type erroringLockClient struct{ Client }

func (e *erroringLockClient) AcquireLock(ctx context.Context, key, ownerID string, ttl time.Duration) (*LockHandle, error) {
	return nil, ErrNetwork
}

func TestAcquireLockWithRetryRecordsLockRetries(t *testing.T) {
	origSleeper := sleeper
	defer func() { sleeper = origSleeper }()
	sleeper = func(ctx context.Context, d time.Duration) error { return nil }

	client := &fakeLockClient{failuresRemaining: 2}
	collector := metrics.NewCollector("apply", "run-1", "alice")
	if _, err := AcquireLockWithRetry(context.Background(), client, "k", "owner", time.Minute, collector); err != nil {
		t.Fatalf("AcquireLockWithRetry() error = %v", err)
	}
	if got := collector.Snapshot().LockRetries; got != 2 {
		t.Errorf("LockRetries = %d, want 2", got)
	}
}

func TestAcquireLockWithRetryNilMetricsSafe(t *testing.T) {
	origSleeper := sleeper
	defer func() { sleeper = origSleeper }()
	sleeper = func(ctx context.Context, d time.Duration) error { return nil }

	client := &fakeLockClient{failuresRemaining: 2}
	if _, err := AcquireLockWithRetry(context.Background(), client, "k", "owner", time.Minute, nil); err != nil {
		t.Fatalf("AcquireLockWithRetry() error = %v", err)
	}
}

func TestDefaultLockTTLIsAtLeast1Point2xApplyTimeout(t *testing.T) {
	applyTimeout := 1800 * time.Second
	got := DefaultLockTTL(applyTimeout)
	want := 2160 * time.Second
	if got != want {
		t.Errorf("DefaultLockTTL() = %v, want %v", got, want)
	}
}
