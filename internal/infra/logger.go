package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing zerolog themselves.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development gets a console writer at
// debug level; every other environment writes JSON at info level.
func NewLogger(appEnv string) Logger {
	return newLogger(os.Stdout, appEnv)
}

// NopLogger returns a logger that discards everything. Handy for tests and
// optional logger fields.
func NopLogger() *Logger {
	l := zerolog.Nop()
	return &l
}

func newLogger(w io.Writer, appEnv string) Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "imagestudio").
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}

	return logger
}
