// Package logger provides the structured slog.Logger used across the
// executor service, plus small helpers for consistent attribute naming.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the process-wide *slog.Logger as an fx module.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// Scope returns a slog attribute identifying the subsystem emitting a log
// line, e.g. logger.Scope("run-executor").
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns a slog attribute wrapping an error under a stable key.
// Safe to call with a nil error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger builds the process *slog.Logger from LOG_LEVEL and GO_ENV.
// LOG_LEVEL defaults to "info" when unset or unrecognized. GO_ENV=="production"
// selects a JSON handler; any other value (including unset) selects a
// text handler, matching local-development ergonomics.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
