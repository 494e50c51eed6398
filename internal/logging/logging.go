// Package logging sets up the process-wide structured logger, grounded on
// zerolog the way the teacher's logiface-zerolog backend and
// HMB-research-open-accounting both do: one *zerolog.Logger, constructed
// once, threaded into every component via its constructor rather than read
// from a package-level global.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. out defaults to os.Stderr when nil; pretty
// enables zerolog's human-readable console writer (for local development),
// matching the corpus's pattern of a plain JSON writer in production and a
// ConsoleWriter in dev.
func New(out io.Writer, pretty bool) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(out).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a "component" field, the
// convention every package in this service uses to scope its log lines.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
