// Package logging configures the zerolog logger shared by the CLI and drivers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls logger construction.
type Options struct {
	Level string    // trace, debug, info, warn, error; default info
	JSON  bool      // structured JSON instead of the console writer
	Out   io.Writer // default os.Stderr
}

// New builds a logger from opts and installs it as the global log.Logger.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))

	var w io.Writer = out
	if !opts.JSON {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	l := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = l
	return l
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
