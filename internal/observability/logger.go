package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process JSON logger. Records carry trace and actor
// ids taken from the context passed to the *Context logging methods.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: levelFor(env),
	})

	return slog.New(NewContextHandler(handler)).With("env", env)
}

func levelFor(env string) slog.Level {
	switch env {
	case "dev":
		return slog.LevelDebug
	case "test":
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
