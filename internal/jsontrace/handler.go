// Package jsontrace writes profiler events as Chrome Trace Event Format
// fragments, one fragment file per process. Fragments are later combined by
// the trace merge step; open the merged file in chrome://tracing or Perfetto.
package jsontrace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loopprof/loopprof/internal/profiler"
)

// Trace Event Format phase letters.
const (
	phaseDurationBegin = "B"
	phaseDurationEnd   = "E"
	phaseInstant       = "i"
	phaseCounter       = "C"
)

// traceEvent is a single TEF record. Timestamps are microseconds.
type traceEvent struct {
	Name      string         `json:"name"`
	Phase     string         `json:"ph"`
	Category  string         `json:"cat,omitempty"`
	TimeStamp int64          `json:"ts"`
	ProcessID int            `json:"pid"`
	ThreadID  int            `json:"tid"`
	Scope     string         `json:"s,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
}

// Handler buffers profiler events and flushes them to a per-process fragment
// file. It implements profiler.EventHandler and exposes its output directory
// through the fragment-provider capability.
type Handler struct {
	logger zerolog.Logger
	dir    string
	path   string
	events []traceEvent
}

// New creates a handler writing fragments under dir. The fragment file name
// embeds the global rank and a random suffix so concurrent ranks sharing the
// directory never collide.
func New(dir string, globalRank int, logger zerolog.Logger) (*Handler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace fragment directory: %w", err)
	}
	suffix := strings.Split(uuid.NewString(), "-")[0]
	path := filepath.Join(dir, fmt.Sprintf("rank%d.%s.trace.json", globalRank, suffix))
	return &Handler{
		logger: logger.With().Str("component", "json_trace").Logger(),
		dir:    dir,
		path:   path,
	}, nil
}

// FragmentDir returns the directory fragments are written into.
func (h *Handler) FragmentDir() string { return h.dir }

// ProcessDurationEvent buffers one half of a duration pair.
func (h *Handler) ProcessDurationEvent(ev profiler.DurationEvent) error {
	phase := phaseDurationEnd
	if ev.IsStart {
		phase = phaseDurationBegin
	}
	h.events = append(h.events, traceEvent{
		Name:      ev.Name,
		Phase:     phase,
		Category:  strings.Join(ev.Categories, ","),
		TimeStamp: ev.WallClockTimeNS / 1000,
		ProcessID: ev.PID,
		ThreadID:  ev.GlobalRank,
		Args:      timestampArgs(ev.Timestamp),
	})
	return nil
}

// ProcessInstantEvent buffers a point event with process scope.
func (h *Handler) ProcessInstantEvent(ev profiler.InstantEvent) error {
	h.events = append(h.events, traceEvent{
		Name:      ev.Name,
		Phase:     phaseInstant,
		Category:  strings.Join(ev.Categories, ","),
		TimeStamp: ev.WallClockTimeNS / 1000,
		ProcessID: ev.PID,
		ThreadID:  ev.GlobalRank,
		Scope:     "p",
		Args:      timestampArgs(ev.Timestamp),
	})
	return nil
}

// ProcessCounterEvent buffers a counter sample; the values become the TEF
// args so tracing UIs render them as stacked series.
func (h *Handler) ProcessCounterEvent(ev profiler.CounterEvent) error {
	args := make(map[string]any, len(ev.Values))
	for k, v := range ev.Values {
		args[k] = v
	}
	h.events = append(h.events, traceEvent{
		Name:      ev.Name,
		Phase:     phaseCounter,
		Category:  strings.Join(ev.Categories, ","),
		TimeStamp: ev.WallClockTimeNS / 1000,
		ProcessID: ev.PID,
		ThreadID:  ev.GlobalRank,
		Args:      args,
	})
	return nil
}

// Close flushes all buffered events to the fragment file.
func (h *Handler) Close() error {
	doc := struct {
		TraceEvents []traceEvent `json:"traceEvents"`
	}{TraceEvents: h.events}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode trace fragment: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write trace fragment: %w", err)
	}
	h.logger.Debug().
		Int("events", len(h.events)).
		Str("path", h.path).
		Msg("Flushed trace fragment")
	return nil
}

func timestampArgs(ts profiler.Timestamp) map[string]any {
	return map[string]any{
		"epoch":          ts.Epoch,
		"batch":          ts.Batch,
		"batch_in_epoch": ts.BatchInEpoch,
		"sample":         ts.Sample,
	}
}
