package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a structured logger for the given service. The level is
// controlled by LOG_LEVEL (debug, info, warn, error); it defaults to info.
// Setting LOG_PRETTY=true switches to human-readable console output.
func New(service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	var out = zerolog.Logger{}
	if os.Getenv("LOG_PRETTY") == "true" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		out = zerolog.New(os.Stderr)
	}

	return out.Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}
