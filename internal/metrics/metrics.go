// Package metrics defines the instrumentation surface of the queue, the
// worker pool and the storage layer, with a no-op and a Prometheus
// implementation.
package metrics

import "time"

// Collector receives observations. Implementations must be safe for
// concurrent use.
type Collector interface {
	// RecordInsert counts an Insert outcome (inserted, already_known, error).
	RecordInsert(result string)
	// RecordPoll records a Poll call and whether it leased a candidate.
	RecordPoll(found bool, elapsed time.Duration)
	// RecordReturn counts a Return outcome (ok, lease_not_found, error).
	RecordReturn(result string, succeeded bool)
	// RecordProtocolError counts store replies outside the script contract.
	RecordProtocolError(op string)
	// RecordVerify records one verifier call.
	RecordVerify(matched bool, elapsed time.Duration)
	// SetActiveWorkers reports the number of running workers.
	SetActiveWorkers(n int)

	// Storage hooks, matching the Pebble wrapper's MetricsHook.
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}
