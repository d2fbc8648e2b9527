package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт JSON-логгер сервисов.
func NewLogger(appEnv string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(levelFor(appEnv))
}

// NewConsoleLogger создаёт человекочитаемый логгер для CLI.
func NewConsoleLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(out).With().Timestamp().Logger().Level(level)
}

func levelFor(appEnv string) zerolog.Level {
	switch appEnv {
	case "dev", "local":
		return zerolog.DebugLevel
	case "test":
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}
