// Package tracedb persists profiler events to a local DuckDB database so a
// run's trace can be queried with SQL alongside the merged JSON trace.
package tracedb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	"github.com/loopprof/loopprof/internal/profiler"
)

const (
	eventTypeDuration = "duration"
	eventTypeInstant  = "instant"
	eventTypeCounter  = "counter"
)

// Storage is a profiler.EventHandler backed by DuckDB. It writes each event
// as it arrives; trace recording is sampled, so per-event inserts stay cheap.
type Storage struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the DuckDB database at path and initializes the
// event schema. An empty path opens an in-memory database.
func Open(path string, logger zerolog.Logger) (*Storage, error) {
	connector, err := duckdbDriver.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}

	s := &Storage{
		db:     sql.OpenDB(connector),
		logger: logger.With().Str("component", "trace_db").Logger(),
	}
	if err := s.initSchema(); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS trace_events_local (
			name               TEXT    NOT NULL,
			categories         TEXT    NOT NULL,
			event_type         TEXT    NOT NULL,
			is_start           BOOLEAN,
			wall_clock_time_ns BIGINT  NOT NULL,
			epoch              INTEGER,
			batch              INTEGER,
			batch_in_epoch     INTEGER,
			sample_count       BIGINT,
			global_rank        INTEGER NOT NULL,
			pid                INTEGER NOT NULL,
			counter_values     TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_trace_events_name
			ON trace_events_local (name);
		CREATE INDEX IF NOT EXISTS idx_trace_events_time
			ON trace_events_local (wall_clock_time_ns);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create trace event schema: %w", err)
	}
	s.logger.Debug().Msg("Trace event schema initialized")
	return nil
}

// ProcessDurationEvent stores one half of a duration pair.
func (s *Storage) ProcessDurationEvent(ev profiler.DurationEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO trace_events_local (
			name, categories, event_type, is_start, wall_clock_time_ns,
			epoch, batch, batch_in_epoch, sample_count, global_rank, pid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Name, strings.Join(ev.Categories, ","), eventTypeDuration, ev.IsStart,
		ev.WallClockTimeNS, ev.Timestamp.Epoch, ev.Timestamp.Batch,
		ev.Timestamp.BatchInEpoch, ev.Timestamp.Sample, ev.GlobalRank, ev.PID,
	)
	if err != nil {
		return fmt.Errorf("failed to store duration event: %w", err)
	}
	return nil
}

// ProcessInstantEvent stores a point event.
func (s *Storage) ProcessInstantEvent(ev profiler.InstantEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO trace_events_local (
			name, categories, event_type, wall_clock_time_ns,
			epoch, batch, batch_in_epoch, sample_count, global_rank, pid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Name, strings.Join(ev.Categories, ","), eventTypeInstant,
		ev.WallClockTimeNS, ev.Timestamp.Epoch, ev.Timestamp.Batch,
		ev.Timestamp.BatchInEpoch, ev.Timestamp.Sample, ev.GlobalRank, ev.PID,
	)
	if err != nil {
		return fmt.Errorf("failed to store instant event: %w", err)
	}
	return nil
}

// ProcessCounterEvent stores a counter sample with its values JSON-encoded.
func (s *Storage) ProcessCounterEvent(ev profiler.CounterEvent) error {
	values, err := json.Marshal(ev.Values)
	if err != nil {
		return fmt.Errorf("failed to encode counter values: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO trace_events_local (
			name, categories, event_type, wall_clock_time_ns,
			global_rank, pid, counter_values
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Name, strings.Join(ev.Categories, ","), eventTypeCounter,
		ev.WallClockTimeNS, ev.GlobalRank, ev.PID, string(values),
	)
	if err != nil {
		return fmt.Errorf("failed to store counter event: %w", err)
	}
	return nil
}

// EventCount returns the number of stored events, optionally filtered by
// event type ("" counts everything).
func (s *Storage) EventCount(eventType string) (int, error) {
	query := "SELECT COUNT(*) FROM trace_events_local"
	var args []any
	if eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, eventType)
	}
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trace events: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}
