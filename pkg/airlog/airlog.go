// Package airlog builds the zerolog.Logger instances this module's
// subsystems take as a constructor parameter (pkg/receiver.NewServer
// does, and cmd/airplay-send and cmd/airplay-receive build theirs with
// New; pkg/connection takes no logger),
// using the `log.Logger.With().Str(...).Logger()` idiom. Outer concerns
// (CLI flag parsing, output format) are out of scope.
package airlog

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger writing human-readable, colorized lines to w
// (intended for os.Stderr in a CLI; a file or io.Discard in tests),
// tagged with a component name and leveled by level (one of zerolog's
// level strings: "debug", "info", "warn", "error"; defaults to "info" on
// an unrecognized value).
func New(w io.Writer, component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(console).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Discard is a logger that drops every event, used by tests and callers
// that have not wired a destination.
var Discard = zerolog.New(io.Discard)
