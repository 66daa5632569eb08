// Package workerpool implements the Worker Pool (C7): a bounded-concurrency
// dispatcher that runs one Unit Executor per DeploymentUnit, up to
// W = min(5, |units|, configured_cap) concurrent workers.
package workerpool

import (
	"context"
	"sync"

	"github.com/lattice-iac/conductor/metrics"
	"github.com/lattice-iac/conductor/types"
)

// MaxWorkers is the hard ceiling on concurrent workers regardless of
// configured cap or unit count, per §4.7.
const MaxWorkers = 5

// WorkerCount computes W = min(MaxWorkers, unitCount, configuredCap).
// A configuredCap <= 0 means "no cap configured"; MaxWorkers and
// unitCount alone then bound W.
func WorkerCount(unitCount, configuredCap int) int {
	w := MaxWorkers
	if unitCount < w {
		w = unitCount
	}
	if configuredCap > 0 && configuredCap < w {
		w = configuredCap
	}
	if w < 0 {
		w = 0
	}
	return w
}

// UnitRunner executes one DeploymentUnit to a terminal outcome. Satisfied
// by unit.Executor.Execute; overridable in tests.
type UnitRunner func(ctx context.Context, u types.DeploymentUnit) *types.UnitOutcome

// Run dispatches units to W workers, one Unit Executor invocation per
// worker at a time. Results are collected in submission order regardless
// of completion order. If ctx is canceled, in-flight units are allowed to
// finish their current step (run still completes it and returns whatever
// terminal outcome results); units not yet dispatched are recorded as
// aborted_before_start without ever calling runner.
func Run(ctx context.Context, units []types.DeploymentUnit, configuredCap int, runner UnitRunner, m *metrics.Collector) []*types.UnitOutcome {
	outcomes := make([]*types.UnitOutcome, len(units))
	if len(units) == 0 {
		return outcomes
	}

	w := WorkerCount(len(units), configuredCap)
	if w == 0 {
		for i, u := range units {
			outcomes[i] = abortedOutcome(u)
			m.IncUnitsAbortedBeforeStart()
		}
		return outcomes
	}

	type indexedUnit struct {
		index int
		unit  types.DeploymentUnit
	}

	queue := make(chan indexedUnit, len(units))
	for i, u := range units {
		queue <- indexedUnit{index: i, unit: u}
	}
	close(queue)

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(w)

	for range w {
		go func() {
			defer wg.Done()
			for iu := range queue {
				select {
				case <-ctx.Done():
					mu.Lock()
					outcomes[iu.index] = abortedOutcome(iu.unit)
					mu.Unlock()
					m.IncUnitsAbortedBeforeStart()
					continue
				default:
				}

				outcome := runner(ctx, iu.unit)
				mu.Lock()
				outcomes[iu.index] = outcome
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return outcomes
}

func abortedOutcome(u types.DeploymentUnit) *types.UnitOutcome {
	return &types.UnitOutcome{
		Unit:         u,
		PhaseReached: types.PhaseAbortedBeforeStart,
		Summary:      "skipped: batch canceled before this unit started",
	}
}
