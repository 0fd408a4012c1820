// Package tracemerge combines per-process trace fragment files into a single
// trace. Merging is post-hoc cleanup: unreadable fragments are skipped with a
// warning and an empty merge is not an error.
package tracemerge

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// FragmentExtension is the suffix identifying trace fragment files.
const FragmentExtension = ".json"

// Discover walks the given directories and returns every fragment file found,
// filtered by FragmentExtension. Missing directories are skipped; a handler
// that never flushed simply contributes nothing.
func Discover(logger zerolog.Logger, dirs []string) []string {
	var files []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, FragmentExtension) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("Skipping unreadable fragment directory")
		}
	}
	sort.Strings(files)
	return files
}

// tefDocument is the envelope of a Trace Event Format file.
type tefDocument struct {
	TraceEvents []json.RawMessage `json:"traceEvents"`
}

// tsProbe extracts just the timestamp field of an event for ordering.
type tsProbe struct {
	TS float64 `json:"ts"`
}

type mergedEvent struct {
	ts  float64
	raw json.RawMessage
}

// Merge reads the given fragment files and writes one merged trace to
// outPath, with events ordered by timestamp. Fragments may be either a full
// TEF document or a bare JSON event array.
func Merge(logger zerolog.Logger, outPath string, files ...string) error {
	var events []mergedEvent
	for _, file := range files {
		evs, err := readFragment(file)
		if err != nil {
			logger.Warn().Err(err).Str("file", file).Msg("Skipping unreadable trace fragment")
			continue
		}
		events = append(events, evs...)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].ts < events[j].ts })

	doc := tefDocument{TraceEvents: make([]json.RawMessage, len(events))}
	for i, ev := range events {
		doc.TraceEvents[i] = ev.raw
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create merged trace directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode merged trace: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write merged trace: %w", err)
	}

	logger.Info().
		Int("fragments", len(files)).
		Int("events", len(events)).
		Str("path", outPath).
		Msg("Merged trace fragments")
	return nil
}

func readFragment(path string) ([]mergedEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment: %w", err)
	}

	var raws []json.RawMessage
	var doc tefDocument
	if err := json.Unmarshal(data, &doc); err == nil && doc.TraceEvents != nil {
		raws = doc.TraceEvents
	} else if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	events := make([]mergedEvent, 0, len(raws))
	for _, raw := range raws {
		var probe tsProbe
		// Events without a parseable ts sort to the front rather than
		// aborting the merge.
		_ = json.Unmarshal(raw, &probe)
		events = append(events, mergedEvent{ts: probe.TS, raw: raw})
	}
	return events, nil
}
