package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context, falling back to the global one.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// With returns a child of the context logger carrying the given user id,
// stored back into a derived context.
func With(ctx context.Context, userID string) (context.Context, zerolog.Logger) {
	l := Ctx(ctx).With().Str(FieldUserID, userID).Logger()
	return WithLogger(ctx, l), l
}
