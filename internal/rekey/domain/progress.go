// Package domain defines the rekey run model: progress tracking, run results and
// the events emitted when an entity type finished moving onto a key.
package domain

import "fmt"

// ProgressTracker counts the outcome of one tenant rekey run.
type ProgressTracker struct {
	maxFailures int
	processed   int
	failed      int
	batches     int
}

// NewProgressTracker creates a tracker that fails once more than maxFailures failures are recorded.
func NewProgressTracker(maxFailures int) *ProgressTracker {
	return &ProgressTracker{maxFailures: maxFailures}
}

// RecordProcessed adds n successfully persisted records.
func (p *ProgressTracker) RecordProcessed(n int) {
	p.processed += n
}

// RecordBatch counts a fetched batch.
func (p *ProgressTracker) RecordBatch() {
	p.batches++
}

// RecordFailure counts a record or batch failure and returns ErrMaxFailuresExceeded
// when the count goes past the threshold.
func (p *ProgressTracker) RecordFailure() error {
	p.failed++
	if p.failed > p.maxFailures {
		return fmt.Errorf("%w: %d failures, threshold %d", ErrMaxFailuresExceeded, p.failed, p.maxFailures)
	}
	return nil
}

// Processed returns the number of persisted records.
func (p *ProgressTracker) Processed() int {
	return p.processed
}

// Failed returns the number of recorded failures.
func (p *ProgressTracker) Failed() int {
	return p.failed
}

// Batches returns the number of fetched batches.
func (p *ProgressTracker) Batches() int {
	return p.batches
}
