// Package observability wires structured logging for the orchestrator and
// carries the invocation identity through context.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
)

// Setup installs the process-wide default logger per configuration.
// Verbose forces debug level regardless of the configured level.
func Setup(cfg config.LoggingConfig, verbose bool) {
	SetupWriter(cfg, verbose, os.Stdout)
}

// SetupWriter is Setup with an explicit sink, for tests.
func SetupWriter(cfg config.LoggingConfig, verbose bool, w io.Writer) {
	level := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

type invocationKeyType string

const invocationKey invocationKeyType = "invocation-id"

// WithInvocationID stores the invocation identity in the context.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey, id)
}

// InvocationID retrieves the invocation identity, or "".
func InvocationID(ctx context.Context) string {
	if id, ok := ctx.Value(invocationKey).(string); ok {
		return id
	}
	return ""
}

// Log returns the default logger annotated with the context's invocation ID.
func Log(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if id := InvocationID(ctx); id != "" {
		logger = logger.With(logfields.InvocationID(id))
	}
	return logger
}
