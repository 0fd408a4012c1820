package tracedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopprof/loopprof/internal/profiler"
	"github.com/loopprof/loopprof/internal/testutil"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := Open("", testutil.Logger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorageStoresAllEventTypes(t *testing.T) {
	s := openTestStorage(t)

	ts := profiler.Timestamp{Epoch: 0, Batch: 5, BatchInEpoch: 5, Sample: 160}
	require.NoError(t, s.ProcessDurationEvent(profiler.DurationEvent{
		Name: "trainer/batch", Categories: []string{"loop"},
		Timestamp: ts, IsStart: true, WallClockTimeNS: 100, GlobalRank: 0, PID: 42,
	}))
	require.NoError(t, s.ProcessDurationEvent(profiler.DurationEvent{
		Name: "trainer/batch", Categories: []string{"loop"},
		Timestamp: ts, IsStart: false, WallClockTimeNS: 200, GlobalRank: 0, PID: 42,
	}))
	require.NoError(t, s.ProcessInstantEvent(profiler.InstantEvent{
		Name: "checkpoint", Timestamp: ts, WallClockTimeNS: 150, GlobalRank: 0, PID: 42,
	}))
	require.NoError(t, s.ProcessCounterEvent(profiler.CounterEvent{
		Name: "sysmon/utilization", WallClockTimeNS: 160, GlobalRank: 0, PID: 42,
		Values: map[string]float64{"cpu_percent": 12.5, "mem_percent": 40},
	}))

	total, err := s.EventCount("")
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	durations, err := s.EventCount(eventTypeDuration)
	require.NoError(t, err)
	assert.Equal(t, 2, durations)

	counters, err := s.EventCount(eventTypeCounter)
	require.NoError(t, err)
	assert.Equal(t, 1, counters)
}

func TestStorageCounterValuesRoundTrip(t *testing.T) {
	s := openTestStorage(t)

	require.NoError(t, s.ProcessCounterEvent(profiler.CounterEvent{
		Name:            "sysmon/utilization",
		WallClockTimeNS: 1,
		Values:          map[string]float64{"mem_used_bytes": 1024},
	}))

	var raw string
	err := s.db.QueryRow(
		"SELECT counter_values FROM trace_events_local WHERE event_type = ?",
		eventTypeCounter,
	).Scan(&raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mem_used_bytes":1024}`, raw)
}

func TestStorageReopenKeepsSchema(t *testing.T) {
	path := t.TempDir() + "/trace.duckdb"

	s, err := Open(path, testutil.Logger(t))
	require.NoError(t, err)
	require.NoError(t, s.ProcessInstantEvent(profiler.InstantEvent{Name: "a", WallClockTimeNS: 1}))
	require.NoError(t, s.Close())

	s, err = Open(path, testutil.Logger(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	n, err := s.EventCount("")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
