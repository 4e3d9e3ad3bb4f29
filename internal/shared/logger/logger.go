// Package logger builds the base zerolog.Logger every component derives its
// contextual logger from (via With().Str("component", ...)).
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New initializes the base logger. devMode switches from production JSON to
// human-readable console output for local runs.
func New(devMode bool) zerolog.Logger {
	if devMode {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		return zerolog.New(consoleWriter).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
