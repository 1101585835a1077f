package core

import (
	"context"

	"github.com/google/uuid"
)

type queryIDKey struct{}

// WithQueryID makes every query run with ctx log and report id instead of
// a generated one.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, id)
}

// QueryIDFromContext returns the query id carried by ctx, if any.
func QueryIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(queryIDKey{}).(string)
	return id, ok && id != ""
}

func ensureQueryID(ctx context.Context) (context.Context, string) {
	if id, ok := QueryIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithQueryID(ctx, id), id
}
