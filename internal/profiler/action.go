// Package profiler implements a sampling-window event profiler for iterative
// training loops. It decides per batch whether instrumentation is active and
// records duration, instant, and counter events through named markers.
package profiler

import "fmt"

// Action is the sampling state of the profiler for a given batch.
type Action int

const (
	// ActionSkip indicates the profiler is not recording for this batch.
	ActionSkip Action = iota

	// ActionWarmup indicates instrumentation is running but results should
	// be treated as warmup noise.
	ActionWarmup

	// ActionActive indicates the profiler is recording for this batch.
	ActionActive
)

// String returns a lowercase name for the action.
func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionWarmup:
		return "warmup"
	case ActionActive:
		return "active"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// CycleConfig describes the per-epoch sampling window cycle.
//
// Every epoch, the first SkipFirst batches are skipped. The profiler then
// cycles through Wait skipped batches, Warmup warmup batches, and Active
// recorded batches. The cycle runs Repeat times per epoch; Repeat == 0 keeps
// the cycle repeating for the remainder of the epoch.
type CycleConfig struct {
	SkipFirst int `yaml:"skip_first"`
	Wait      int `yaml:"wait"`
	Warmup    int `yaml:"warmup"`
	Active    int `yaml:"active"`
	Repeat    int `yaml:"repeat"`
}

// DefaultCycleConfig returns the default sampling cycle: one warmup batch and
// four recorded batches, once per epoch.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		SkipFirst: 0,
		Wait:      0,
		Warmup:    1,
		Active:    4,
		Repeat:    1,
	}
}

// Validate checks that all cycle fields are non-negative. A zero-length cycle
// is valid; it disables recording entirely.
func (c CycleConfig) Validate() error {
	if c.SkipFirst < 0 || c.Wait < 0 || c.Warmup < 0 || c.Active < 0 || c.Repeat < 0 {
		return fmt.Errorf("cycle config fields must be non-negative: %+v", c)
	}
	return nil
}

func (c CycleConfig) cycleLen() int {
	return c.Wait + c.Warmup + c.Active
}

// ActionAt returns the sampling action for the given 0-based batch index
// within the current epoch. The host resets batchIdx to 0 every epoch; the
// cycle has no cross-epoch memory.
//
// SkipFirst is folded into the batch counter here: batches below SkipFirst
// are always skipped and the cycle computation runs on the offset index, so
// the same convention applies identically every epoch.
//
// ActionAt is a pure function of (batchIdx, c).
func (c CycleConfig) ActionAt(batchIdx int) Action {
	if batchIdx < c.SkipFirst {
		return ActionSkip
	}
	idx := batchIdx - c.SkipFirst

	cycleLen := c.cycleLen()
	if cycleLen == 0 {
		// Degenerate cycle: the profiler is configured off.
		return ActionSkip
	}
	if c.Repeat != 0 && idx >= cycleLen*c.Repeat {
		// All repeats exhausted for this epoch.
		return ActionSkip
	}
	pos := idx % cycleLen
	if pos < c.Wait {
		return ActionSkip
	}
	if pos < c.Wait+c.Warmup {
		return ActionWarmup
	}
	return ActionActive
}
