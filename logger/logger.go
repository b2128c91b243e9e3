package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Output always goes to stderr: stdout is
// reserved for the stdio transport and a single stray log line there would
// corrupt the frame stream.
func New(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

// Component tags a child logger with a component name and instance id, so
// concurrent sessions can be told apart in the output.
func Component(log zerolog.Logger, name, id string) zerolog.Logger {
	return log.With().Str("component", name).Str("id", id).Logger()
}
