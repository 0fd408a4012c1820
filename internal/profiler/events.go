package profiler

// Timestamp is the host loop's logical clock at the moment an event fires.
// It correlates wall-clock event times back to training progress.
type Timestamp struct {
	// Epoch is the 0-based epoch counter.
	Epoch int
	// Batch is the global batch counter across all epochs.
	Batch int
	// BatchInEpoch is the 0-based batch counter within the current epoch.
	BatchInEpoch int
	// Sample is the number of samples seen so far.
	Sample int64
}

// TimeSource supplies the host loop's counters on demand. The host owns
// batch and epoch numbering; the profiler only reads it.
type TimeSource interface {
	// BatchInEpoch returns the 0-based index of the current batch within
	// the current epoch. It must reset to 0 at every epoch boundary.
	BatchInEpoch() int

	// Timestamp returns the logical timestamp for the current step.
	Timestamp() Timestamp
}

// DurationEvent is one half of a paired start/finish interval record.
type DurationEvent struct {
	Name            string
	Categories      []string
	Timestamp       Timestamp
	IsStart         bool
	WallClockTimeNS int64
	GlobalRank      int
	PID             int
}

// InstantEvent is a single-timestamp point record.
type InstantEvent struct {
	Name            string
	Categories      []string
	Timestamp       Timestamp
	WallClockTimeNS int64
	GlobalRank      int
	PID             int
}

// CounterEvent is a named set of numeric values sampled at one timestamp.
type CounterEvent struct {
	Name            string
	Categories      []string
	WallClockTimeNS int64
	GlobalRank      int
	PID             int
	Values          map[string]float64
}

// EventHandler consumes profiler events. Handlers are pure sinks: the
// profiler fans each event out to every registered handler in registration
// order and propagates the first handler error to the caller.
type EventHandler interface {
	ProcessDurationEvent(ev DurationEvent) error
	ProcessInstantEvent(ev InstantEvent) error
	ProcessCounterEvent(ev CounterEvent) error
}

// FragmentProvider is implemented by handlers that write file-based trace
// fragments. The trace merge step queries this capability to discover
// fragment directories; handlers without it are left alone.
type FragmentProvider interface {
	// FragmentDir returns the directory the handler writes fragments into.
	FragmentDir() string
}
