// Package logging configures the structured logger shared by the
// fusion core's packages. It always writes JSON to the stream the
// host gives it -- no file-path or environment-variable handling,
// since configuration parsing and log transport are the host's
// concern, not the core's.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus's level names without exposing logrus in
// callers that only need to pick a verbosity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// New returns a JSON-formatted logger at the given level, writing to
// out. Pass nil for out to default to os.Stdout.
func New(level Level, out io.Writer) *logrus.Logger {
	logger := logrus.New()

	if out == nil {
		out = os.Stdout
	}
	logger.SetOutput(out)

	switch level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	return logger
}

// Discard returns a logger that drops everything written to it, for
// callers (tests, library consumers that don't want output) that need
// a valid *logrus.Logger without configuring one.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
