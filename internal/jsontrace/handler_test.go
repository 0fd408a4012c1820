package jsontrace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopprof/loopprof/internal/profiler"
	"github.com/loopprof/loopprof/internal/testutil"
)

func flushAndRead(t *testing.T, h *Handler) []traceEvent {
	t.Helper()
	require.NoError(t, h.Close())

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(h.dir, entries[0].Name()))
	require.NoError(t, err)
	var doc struct {
		TraceEvents []traceEvent `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc.TraceEvents
}

func TestHandlerWritesDurationPair(t *testing.T) {
	h, err := New(t.TempDir(), 2, testutil.Logger(t))
	require.NoError(t, err)

	ts := profiler.Timestamp{Epoch: 1, Batch: 17, BatchInEpoch: 3, Sample: 544}
	start := profiler.DurationEvent{
		Name: "trainer/step", Categories: []string{"loop", "compute"},
		Timestamp: ts, IsStart: true, WallClockTimeNS: 5_000_000,
		GlobalRank: 2, PID: 1234,
	}
	end := start
	end.IsStart = false
	end.WallClockTimeNS = 9_000_000

	require.NoError(t, h.ProcessDurationEvent(start))
	require.NoError(t, h.ProcessDurationEvent(end))

	events := flushAndRead(t, h)
	require.Len(t, events, 2)

	assert.Equal(t, "B", events[0].Phase)
	assert.Equal(t, "E", events[1].Phase)
	assert.Equal(t, "trainer/step", events[0].Name)
	assert.Equal(t, "loop,compute", events[0].Category)
	// Nanoseconds converted to TEF microseconds.
	assert.Equal(t, int64(5000), events[0].TimeStamp)
	assert.Equal(t, int64(9000), events[1].TimeStamp)
	assert.Equal(t, 1234, events[0].ProcessID)
	assert.Equal(t, 2, events[0].ThreadID)
	assert.EqualValues(t, 1, events[0].Args["epoch"])
	assert.EqualValues(t, 3, events[0].Args["batch_in_epoch"])
}

func TestHandlerWritesInstant(t *testing.T) {
	h, err := New(t.TempDir(), 0, testutil.Logger(t))
	require.NoError(t, err)

	require.NoError(t, h.ProcessInstantEvent(profiler.InstantEvent{
		Name: "checkpoint", WallClockTimeNS: 1_000, GlobalRank: 0, PID: 7,
	}))

	events := flushAndRead(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, "i", events[0].Phase)
	assert.Equal(t, "p", events[0].Scope)
}

func TestHandlerWritesCounterValuesAsArgs(t *testing.T) {
	h, err := New(t.TempDir(), 0, testutil.Logger(t))
	require.NoError(t, err)

	require.NoError(t, h.ProcessCounterEvent(profiler.CounterEvent{
		Name:            "sysmon/utilization",
		WallClockTimeNS: 2_000,
		Values:          map[string]float64{"cpu_percent": 42.5},
	}))

	events := flushAndRead(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, "C", events[0].Phase)
	assert.EqualValues(t, 42.5, events[0].Args["cpu_percent"])
}

func TestHandlerFragmentNaming(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir, 3, testutil.Logger(t))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	assert.Equal(t, dir, h.FragmentDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	assert.True(t, strings.HasPrefix(name, "rank3."), name)
	assert.True(t, strings.HasSuffix(name, ".trace.json"), name)
}

func TestHandlersSharingDirDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	for rank := 0; rank < 2; rank++ {
		h, err := New(dir, rank, testutil.Logger(t))
		require.NoError(t, err)
		require.NoError(t, h.Close())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
