// Package testutil provides shared test helpers.
package testutil

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a logger that discards all output.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(io.Discard)
}

// VerboseLogger returns a logger writing through t.Log.
func VerboseLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(tWriter{t: t}).With().Timestamp().Logger()
}

type tWriter struct {
	t *testing.T
}

func (w tWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
