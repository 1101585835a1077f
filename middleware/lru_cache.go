package middleware

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/shrek82/simplejorm/core"
)

// LRUCacheMiddleware is a size-bounded in-process result cache. The least
// recently used entry is evicted once Size entries are held. Like the
// other caches it only serves queries marked with WithCache.
type LRUCacheMiddleware struct {
	Size       int
	DefaultTTL time.Duration // 0 keeps entries until evicted

	items *lru.Cache
	now   func() time.Time
}

type lruEntry struct {
	result    *core.Result
	expiresAt time.Time
}

func NewLRUCache(size int, defaultTTL time.Duration) *LRUCacheMiddleware {
	return &LRUCacheMiddleware{Size: size, DefaultTTL: defaultTTL, now: time.Now}
}

func (m *LRUCacheMiddleware) Name() string {
	return "LRUCache"
}

func (m *LRUCacheMiddleware) Init(db *core.DB) error {
	size := m.Size
	if size <= 0 {
		size = 1024
	}
	items, err := lru.New(size)
	if err != nil {
		return err
	}
	m.items = items
	if m.now == nil {
		m.now = time.Now
	}
	return nil
}

func (m *LRUCacheMiddleware) Shutdown() error {
	if m.items != nil {
		m.items.Purge()
	}
	return nil
}

// Len returns the number of cached entries.
func (m *LRUCacheMiddleware) Len() int {
	if m.items == nil {
		return 0
	}
	return m.items.Len()
}

func (m *LRUCacheMiddleware) Process(ctx context.Context, op *core.Operation, next core.QueryFunc) (*core.Result, error) {
	ttl, ok := cacheTTL(ctx, m.DefaultTTL)
	if !ok || m.items == nil {
		return next(ctx, op)
	}

	key := op.Key()
	if v, found := m.items.Get(key); found {
		entry := v.(lruEntry)
		if entry.expiresAt.IsZero() || m.now().Before(entry.expiresAt) {
			return copyResult(entry.result, true), nil
		}
		m.items.Remove(key)
	}

	res, err := next(ctx, op)
	if err != nil {
		return nil, err
	}
	entry := lruEntry{result: copyResult(res, false)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.items.Add(key, entry)
	return res, nil
}
