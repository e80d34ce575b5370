package dispatch

import (
	"sync/atomic"
	"time"
)

// SyncDispatcher executes calls in the caller's goroutine and keeps
// running totals.
type SyncDispatcher struct {
	executor *Executor

	// Stats
	dispatched  atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	totalTimeNs atomic.Int64
}

// NewSyncDispatcher creates a new synchronous dispatcher.
func NewSyncDispatcher() *SyncDispatcher {
	return &SyncDispatcher{
		executor: NewExecutor(),
	}
}

// Dispatch executes fn and records the outcome.
func (d *SyncDispatcher) Dispatch(fn func() error) Result {
	d.dispatched.Add(1)

	result := d.executor.Execute(fn)

	d.totalTimeNs.Add(result.Duration.Nanoseconds())
	switch {
	case result.Panicked:
		d.panicked.Add(1)
	case result.Error != nil:
		d.failed.Add(1)
	default:
		d.succeeded.Add(1)
	}

	return result
}

// Stats returns dispatch statistics.
// Values are read without a lock and may be slightly inconsistent.
func (d *SyncDispatcher) Stats() Stats {
	dispatched := d.dispatched.Load()
	totalNs := d.totalTimeNs.Load()

	var avgNs int64
	if dispatched > 0 {
		avgNs = totalNs / int64(dispatched)
	}

	return Stats{
		Dispatched:    dispatched,
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Panicked:      d.panicked.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// Stats contains statistics for a sync dispatcher.
type Stats struct {
	// Dispatched is the total number of dispatch calls.
	Dispatched uint64

	// Succeeded is the number of calls that returned nil.
	Succeeded uint64

	// Failed is the number of calls that returned errors.
	Failed uint64

	// Panicked is the number of calls that panicked.
	Panicked uint64

	// TotalDuration is the cumulative time spent in calls.
	TotalDuration time.Duration

	// AvgDuration is the average call duration.
	AvgDuration time.Duration
}
