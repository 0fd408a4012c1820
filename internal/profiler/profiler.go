package profiler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/loopprof/loopprof/internal/dist"
	"github.com/loopprof/loopprof/internal/tracemerge"
)

// Config configures a Profiler.
type Config struct {
	// Cycle is the per-epoch sampling window cycle.
	Cycle CycleConfig

	// MergedTracePath is where MergeTraces writes the combined trace.
	MergedTracePath string
}

// Profiler owns the marker registry and the sampling cycle, fans recorded
// events out to every registered handler, and coordinates the end-of-run
// trace merge. Create one per run.
//
// The registry is owned exclusively by the profiler and is not guarded for
// concurrent mutation; a multi-threaded host must serialize access itself.
type Profiler struct {
	logger          zerolog.Logger
	time            TimeSource
	runtime         dist.Runtime
	cycle           CycleConfig
	handlers        []EventHandler
	markers         map[string]*Marker
	mergedTracePath string
}

// New creates a Profiler bound to the host loop's time source and the
// distributed runtime.
func New(cfg Config, ts TimeSource, runtime dist.Runtime, handlers []EventHandler, logger zerolog.Logger) (*Profiler, error) {
	if err := cfg.Cycle.Validate(); err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, fmt.Errorf("time source is required")
	}
	if runtime == nil {
		return nil, fmt.Errorf("distributed runtime is required")
	}
	return &Profiler{
		logger:          logger.With().Str("component", "profiler").Logger(),
		time:            ts,
		runtime:         runtime,
		cycle:           cfg.Cycle,
		handlers:        handlers,
		markers:         make(map[string]*Marker),
		mergedTracePath: cfg.MergedTracePath,
	}, nil
}

// Handlers returns the registered event handlers in registration order.
func (p *Profiler) Handlers() []EventHandler { return p.handlers }

// Action returns the sampling action for the host's current batch.
func (p *Profiler) Action() Action {
	return p.cycle.ActionAt(p.time.BatchInEpoch())
}

// Marker returns the marker registered under name, creating and registering
// it on first lookup. All callers share the single instance; name uniqueness
// is enforced by this insert-or-fetch being the only way to construct one.
// The marker's categories are overwritten on every lookup (last writer wins);
// all other options only apply at creation.
func (p *Profiler) Marker(name string, opts ...MarkerOption) *Marker {
	o := defaultMarkerOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m, ok := p.markers[name]
	if !ok {
		m = &Marker{
			profiler:              p,
			name:                  name,
			actions:               o.actions,
			recordInstantOnStart:  o.recordInstantOnStart,
			recordInstantOnFinish: o.recordInstantOnFinish,
		}
		p.markers[name] = m
	}
	m.categories = o.categories
	return m
}

// recordDurationEvent fans a duration event out to every handler in
// registration order. The first handler error stops the fan-out and
// propagates; handlers invoked before it have already processed the event.
func (p *Profiler) recordDurationEvent(ev DurationEvent) error {
	for _, h := range p.handlers {
		if err := h.ProcessDurationEvent(ev); err != nil {
			return fmt.Errorf("failed to process duration event %q: %w", ev.Name, err)
		}
	}
	return nil
}

func (p *Profiler) recordInstantEvent(ev InstantEvent) error {
	for _, h := range p.handlers {
		if err := h.ProcessInstantEvent(ev); err != nil {
			return fmt.Errorf("failed to process instant event %q: %w", ev.Name, err)
		}
	}
	return nil
}

func (p *Profiler) recordCounterEvent(ev CounterEvent) error {
	for _, h := range p.handlers {
		if err := h.ProcessCounterEvent(ev); err != nil {
			return fmt.Errorf("failed to process counter event %q: %w", ev.Name, err)
		}
	}
	return nil
}

// MergeTraces combines the trace fragments written by fragment-providing
// handlers into the configured merged trace file.
//
// Every rank must call MergeTraces: it synchronizes at a barrier so all
// fragments are flushed before merging, then only local rank 0 performs the
// merge while the remaining ranks return immediately. Missing fragments are
// not an error; the merge is best-effort cleanup.
func (p *Profiler) MergeTraces(ctx context.Context) error {
	if err := p.runtime.Barrier(ctx); err != nil {
		return fmt.Errorf("failed to synchronize ranks before trace merge: %w", err)
	}
	if p.runtime.LocalRank() != 0 {
		return nil
	}

	var dirs []string
	for _, h := range p.handlers {
		if fp, ok := h.(FragmentProvider); ok {
			dirs = append(dirs, fp.FragmentDir())
		}
	}
	if len(dirs) == 0 {
		p.logger.Debug().Msg("No fragment-providing handlers registered, nothing to merge")
	}

	files := tracemerge.Discover(p.logger, dirs)
	p.logger.Info().
		Int("fragments", len(files)).
		Str("path", p.mergedTracePath).
		Msg("Merging profiler trace fragments")
	return tracemerge.Merge(p.logger, p.mergedTracePath, files...)
}
