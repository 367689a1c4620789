// Package logging configures the application logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	Level  string // trace, debug, info, warn, error; default info
	Pretty bool   // human-readable console output instead of JSON
}

// New builds the root logger. Components derive their own loggers from it
// with With(); nothing in the pipeline reaches into process-global state.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
