package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// queryStats collects per-connection counters. All fields are updated
// atomically; asynchronous statements report from their own goroutine.
type queryStats struct {
	queries         atomic.Int64
	asyncQueries    atomic.Int64
	failures        atomic.Int64
	slowQueries     atomic.Int64
	deadlocks       atomic.Int64
	lockTimeouts    atomic.Int64
	connects        atomic.Int64
	connectFailures atomic.Int64
	totalDuration   atomic.Int64 // nanoseconds
}

// snapshot returns a point-in-time copy of the counters.
func (s *queryStats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:         s.queries.Load(),
		AsyncQueries:    s.asyncQueries.Load(),
		Failures:        s.failures.Load(),
		SlowQueries:     s.slowQueries.Load(),
		Deadlocks:       s.deadlocks.Load(),
		LockTimeouts:    s.lockTimeouts.Load(),
		Connects:        s.connects.Load(),
		ConnectFailures: s.connectFailures.Load(),
		TotalDuration:   time.Duration(s.totalDuration.Load()),
	}
}

func (s *queryStats) record(res *QueryResult, elapsed time.Duration, async, slow bool) {
	s.queries.Add(1)
	if async {
		s.asyncQueries.Add(1)
	}
	s.totalDuration.Add(int64(elapsed))
	if slow {
		s.slowQueries.Add(1)
	}
	if res.HasFailed() {
		s.failures.Add(1)
	}
	if res.HasDeadlock() {
		s.deadlocks.Add(1)
	}
	if res.HasLockTimeout() {
		s.lockTimeouts.Add(1)
	}
}

// StatsSnapshot is a point-in-time snapshot of connection statistics.
// Queries counts statements sent to the server, including asynchronous ones.
type StatsSnapshot struct {
	Queries         int64
	AsyncQueries    int64
	Failures        int64
	SlowQueries     int64
	Deadlocks       int64
	LockTimeouts    int64
	Connects        int64
	ConnectFailures int64
	TotalDuration   time.Duration
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	if s.Queries == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Queries)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d async=%d failures=%d slow=%d deadlocks=%d lock_timeouts=%d connects=%d connect_failures=%d avg=%s",
		s.Queries, s.AsyncQueries, s.Failures, s.SlowQueries, s.Deadlocks, s.LockTimeouts,
		s.Connects, s.ConnectFailures, s.AvgQueryDuration(),
	)
}
