package logctx

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithLogger returns a context carrying the given slog.Logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// LoggerFromContext returns the logger stored in ctx, falling back to
// slog.Default() when none is present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}
