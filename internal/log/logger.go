package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New writes to stdout. Production logs are JSON lines; other environments get the
// console format.
func New(environment, level string) zerolog.Logger {
	return NewWithWriter(environment, level, os.Stdout)
}

func NewWithWriter(environment, level string, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	if environment != "production" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(parseLevel(environment, level)).
		With().
		Timestamp().
		Str("service", "mediashare").
		Str("env", environment).
		Logger()
}

func parseLevel(environment, level string) zerolog.Level {
	if level != "" {
		if lvl, err := zerolog.ParseLevel(level); err == nil && lvl != zerolog.NoLevel {
			return lvl
		}
	}
	if environment == "production" {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}
