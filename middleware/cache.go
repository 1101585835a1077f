package middleware

import (
	"context"
	"time"

	"github.com/shrek82/simplejorm/record"
)

type cacheTTLKey struct{}

// WithCache marks the queries run with ctx as cacheable. ttl > 0 keeps
// entries for ttl, ttl < 0 uses the cache's default and 0 turns caching
// off again.
func WithCache(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheTTLKey{}, ttl)
}

// cacheTTL reports whether ctx asks for caching and for how long.
func cacheTTL(ctx context.Context, def time.Duration) (time.Duration, bool) {
	ttl, ok := ctx.Value(cacheTTLKey{}).(time.Duration)
	if !ok || ttl == 0 {
		return 0, false
	}
	if ttl < 0 {
		return def, true
	}
	return ttl, true
}

// cloneRecords copies rows so that neither the caller nor the JSON
// decoder can change what the cache holds.
func cloneRecords(rows []*record.Record) []*record.Record {
	if rows == nil {
		return nil
	}
	out := make([]*record.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
