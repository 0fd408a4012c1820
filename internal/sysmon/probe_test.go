package sysmon

import (
	"testing"

	"github.com/loopprof/loopprof/internal/dist"
	"github.com/loopprof/loopprof/internal/profiler"
	"github.com/loopprof/loopprof/internal/testutil"
)

type staticTime struct{ batch int }

func (s staticTime) BatchInEpoch() int             { return s.batch }
func (s staticTime) Timestamp() profiler.Timestamp { return profiler.Timestamp{BatchInEpoch: s.batch} }

type captureHandler struct {
	counters []profiler.CounterEvent
}

func (h *captureHandler) ProcessDurationEvent(profiler.DurationEvent) error { return nil }
func (h *captureHandler) ProcessInstantEvent(profiler.InstantEvent) error   { return nil }
func (h *captureHandler) ProcessCounterEvent(ev profiler.CounterEvent) error {
	h.counters = append(h.counters, ev)
	return nil
}

func newProbeProfiler(t *testing.T, cycle profiler.CycleConfig, h profiler.EventHandler) *profiler.Profiler {
	t.Helper()
	p, err := profiler.New(
		profiler.Config{Cycle: cycle},
		staticTime{}, dist.Local(), []profiler.EventHandler{h}, testutil.Logger(t))
	if err != nil {
		t.Fatalf("failed to create profiler: %v", err)
	}
	return p
}

func TestProbeSampleRecordsUtilization(t *testing.T) {
	h := &captureHandler{}
	p := newProbeProfiler(t, profiler.CycleConfig{Active: 1, Repeat: 0}, h)

	probe := New(p, DefaultConfig(), testutil.Logger(t))
	if err := probe.Sample(); err != nil {
		t.Fatalf("sample failed: %v", err)
	}

	if len(h.counters) != 1 {
		t.Fatalf("expected 1 counter event, got %d", len(h.counters))
	}
	ev := h.counters[0]
	if ev.Name != "sysmon/utilization" {
		t.Errorf("unexpected counter name %q", ev.Name)
	}
	if len(ev.Values) == 0 {
		t.Error("expected at least one utilization value")
	}
	for key, v := range ev.Values {
		if v < 0 {
			t.Errorf("negative utilization %s=%f", key, v)
		}
	}
}

func TestProbeGatedOffOutsideActiveWindow(t *testing.T) {
	h := &captureHandler{}
	// Warmup-only cycle at batch 0: the probe's marker records only on
	// active, so nothing is emitted.
	p := newProbeProfiler(t, profiler.CycleConfig{Warmup: 1, Active: 1, Repeat: 1}, h)

	probe := New(p, DefaultConfig(), testutil.Logger(t))
	if err := probe.Sample(); err != nil {
		t.Fatalf("sample failed: %v", err)
	}
	if len(h.counters) != 0 {
		t.Errorf("expected no counter events during warmup, got %d", len(h.counters))
	}
}

func TestProbeDisabled(t *testing.T) {
	h := &captureHandler{}
	p := newProbeProfiler(t, profiler.CycleConfig{Active: 1, Repeat: 0}, h)

	probe := New(p, Config{Enabled: false}, testutil.Logger(t))
	if err := probe.Sample(); err != nil {
		t.Fatalf("sample failed: %v", err)
	}
	if len(h.counters) != 0 {
		t.Errorf("expected no counter events when disabled, got %d", len(h.counters))
	}
}
