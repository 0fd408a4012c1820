package profiler

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrMarkerStarted is returned when Start is called on a marker that
	// already has an open start/finish pair.
	ErrMarkerStarted = errors.New("marker already started")

	// ErrMarkerNotStarted is returned when Finish is called on a marker
	// without an open start/finish pair.
	ErrMarkerNotStarted = errors.New("marker not started")
)

// Marker records events for one named code region. Markers are created
// through Profiler.Marker, which guarantees a single shared instance per
// name, and are bound to their profiler for their whole lifetime.
//
// A marker is not safe for concurrent use; the profiler core is
// single-threaded per process.
type Marker struct {
	profiler              *Profiler
	name                  string
	actions               map[Action]struct{}
	categories            []string
	recordInstantOnStart  bool
	recordInstantOnFinish bool

	started       bool
	actionAtStart Action
}

// Name returns the marker's unique name.
func (m *Marker) Name() string { return m.name }

// Categories returns the marker's current categories. The slice is
// overwritten by every Profiler.Marker lookup (last writer wins).
func (m *Marker) Categories() []string { return m.categories }

func (m *Marker) recordsOn(a Action) bool {
	_, ok := m.actions[a]
	return ok
}

// Start records the start of a duration event. The sampling action is
// evaluated once here and frozen until Finish, so both halves of the pair
// are gated by the same decision even if the step counter advances in
// between. The started flag is updated whether or not the action matched;
// only the recording is conditional.
func (m *Marker) Start() error {
	if m.started {
		return fmt.Errorf("marker %q: %w", m.name, ErrMarkerStarted)
	}

	m.actionAtStart = m.profiler.Action()
	if m.recordsOn(m.actionAtStart) {
		wallClock := time.Now().UnixNano()
		ev := DurationEvent{
			Name:            m.name,
			Categories:      m.categories,
			Timestamp:       m.profiler.time.Timestamp(),
			IsStart:         true,
			WallClockTimeNS: wallClock,
			GlobalRank:      m.profiler.runtime.GlobalRank(),
			PID:             os.Getpid(),
		}
		if err := m.profiler.recordDurationEvent(ev); err != nil {
			return err
		}
		if m.recordInstantOnStart {
			if err := m.profiler.recordInstantEvent(m.instantEvent(wallClock)); err != nil {
				return err
			}
		}
	}
	m.started = true
	return nil
}

// Finish records the end of a duration event under the action frozen by the
// matching Start.
func (m *Marker) Finish() error {
	if !m.started {
		return fmt.Errorf("marker %q: %w", m.name, ErrMarkerNotStarted)
	}

	if m.recordsOn(m.actionAtStart) {
		wallClock := time.Now().UnixNano()
		ev := DurationEvent{
			Name:            m.name,
			Categories:      m.categories,
			Timestamp:       m.profiler.time.Timestamp(),
			IsStart:         false,
			WallClockTimeNS: wallClock,
			GlobalRank:      m.profiler.runtime.GlobalRank(),
			PID:             os.Getpid(),
		}
		if err := m.profiler.recordDurationEvent(ev); err != nil {
			return err
		}
		if m.recordInstantOnFinish {
			if err := m.profiler.recordInstantEvent(m.instantEvent(wallClock)); err != nil {
				return err
			}
		}
	}
	m.started = false
	return nil
}

// Instant records a single point event. Unlike Start/Finish, the sampling
// action is re-evaluated at call time.
func (m *Marker) Instant() error {
	if !m.recordsOn(m.profiler.Action()) {
		return nil
	}
	return m.profiler.recordInstantEvent(m.instantEvent(time.Now().UnixNano()))
}

// Counter records a snapshot of named numeric values. The sampling action is
// re-evaluated at call time.
func (m *Marker) Counter(values map[string]float64) error {
	if !m.recordsOn(m.profiler.Action()) {
		return nil
	}
	return m.profiler.recordCounterEvent(CounterEvent{
		Name:            m.name,
		Categories:      m.categories,
		WallClockTimeNS: time.Now().UnixNano(),
		GlobalRank:      m.profiler.runtime.GlobalRank(),
		PID:             os.Getpid(),
		Values:          values,
	})
}

// Scope brackets fn with Start and Finish. Finish runs on every exit path,
// including panics, so call sites don't need their own defer plumbing.
func (m *Marker) Scope(fn func() error) (err error) {
	if err := m.Start(); err != nil {
		return err
	}
	defer func() {
		ferr := m.Finish()
		if err == nil {
			err = ferr
		}
	}()
	return fn()
}

// Wrap returns a function that runs fn inside this marker's scope. Every
// invocation of the wrapped function re-runs the full start/finish protocol,
// producing an independent duration pair per call.
func (m *Marker) Wrap(fn func() error) func() error {
	return func() error {
		return m.Scope(fn)
	}
}

func (m *Marker) instantEvent(wallClockNS int64) InstantEvent {
	return InstantEvent{
		Name:            m.name,
		Categories:      m.categories,
		Timestamp:       m.profiler.time.Timestamp(),
		WallClockTimeNS: wallClockNS,
		GlobalRank:      m.profiler.runtime.GlobalRank(),
		PID:             os.Getpid(),
	}
}
