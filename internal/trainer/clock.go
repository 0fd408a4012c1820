// Package trainer runs a synthetic instrumented training loop. It stands in
// for the real host loop: it owns batch/epoch numbering and supplies the
// profiler's logical clock.
package trainer

import "github.com/loopprof/loopprof/internal/profiler"

// Clock tracks training progress and implements profiler.TimeSource. The
// trainer advances it; the profiler only reads it.
type Clock struct {
	epoch        int
	batch        int
	batchInEpoch int
	samples      int64
	batchSize    int
}

// NewClock creates a clock counting samples in increments of batchSize.
func NewClock(batchSize int) *Clock {
	return &Clock{batchSize: batchSize}
}

// BatchInEpoch returns the 0-based batch index within the current epoch.
func (c *Clock) BatchInEpoch() int { return c.batchInEpoch }

// Epoch returns the 0-based epoch counter.
func (c *Clock) Epoch() int { return c.epoch }

// Timestamp returns the logical timestamp for the current step.
func (c *Clock) Timestamp() profiler.Timestamp {
	return profiler.Timestamp{
		Epoch:        c.epoch,
		Batch:        c.batch,
		BatchInEpoch: c.batchInEpoch,
		Sample:       c.samples,
	}
}

// AdvanceBatch moves the clock past the current batch.
func (c *Clock) AdvanceBatch() {
	c.batch++
	c.batchInEpoch++
	c.samples += int64(c.batchSize)
}

// AdvanceEpoch moves the clock to the start of the next epoch. The
// batch-in-epoch counter resets to 0; the global batch counter does not.
func (c *Clock) AdvanceEpoch() {
	c.epoch++
	c.batchInEpoch = 0
}
