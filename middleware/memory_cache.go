package middleware

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/shrek82/simplejorm/core"
)

// MemoryCacheMiddleware caches store results in process memory.
// Only queries whose context was marked with WithCache are cached.
// Concurrent misses for the same statement share one store call.
type MemoryCacheMiddleware struct {
	DefaultTTL time.Duration

	items *gocache.Cache
	group singleflight.Group
}

type memoryEntry struct {
	result *core.Result
}

func NewMemoryCache(defaultTTL ...time.Duration) *MemoryCacheMiddleware {
	ttl := 5 * time.Minute
	if len(defaultTTL) > 0 {
		ttl = defaultTTL[0]
	}
	return &MemoryCacheMiddleware{
		DefaultTTL: ttl,
		items:      gocache.New(ttl, time.Minute),
	}
}

func (m *MemoryCacheMiddleware) Name() string {
	return "MemoryCache"
}

func (m *MemoryCacheMiddleware) Init(db *core.DB) error {
	return nil
}

func (m *MemoryCacheMiddleware) Shutdown() error {
	m.items.Flush()
	return nil
}

// Len returns the number of cached entries, expired ones included until
// the next cleanup.
func (m *MemoryCacheMiddleware) Len() int {
	return m.items.ItemCount()
}

func (m *MemoryCacheMiddleware) Process(ctx context.Context, op *core.Operation, next core.QueryFunc) (*core.Result, error) {
	ttl, ok := cacheTTL(ctx, m.DefaultTTL)
	if !ok {
		return next(ctx, op)
	}

	key := op.Key()
	if v, found := m.items.Get(key); found {
		return copyResult(v.(memoryEntry).result, true), nil
	}

	// The shared call must not die with whichever caller started it, so it
	// runs detached and every caller waits on its own context.
	ch := m.group.DoChan(key, func() (any, error) {
		res, err := next(context.WithoutCancel(ctx), op)
		if err != nil {
			return nil, err
		}
		entry := memoryEntry{result: copyResult(res, false)}
		m.items.Set(key, entry, ttl)
		return entry, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return copyResult(r.Val.(memoryEntry).result, false), nil
	}
}

func copyResult(res *core.Result, cached bool) *core.Result {
	return &core.Result{
		Records: cloneRecords(res.Records),
		Count:   res.Count,
		Cached:  cached,
	}
}
