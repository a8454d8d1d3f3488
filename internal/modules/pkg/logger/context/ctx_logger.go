package ctxlogger

import (
	"context"
	"log/slog"
)

// key is an unexported type used as the key for the logger in the context
type key struct{}

// SetLogger returns a new context that carries the provided slog.Logger
func SetLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// GetLogger retrieves the slog.Logger from the provided context.
// Without one it returns slog.Default so callers never get nil.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(key{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// With returns a context whose logger carries the extra attributes
func With(ctx context.Context, args ...any) context.Context {
	return SetLogger(ctx, GetLogger(ctx).With(args...))
}
