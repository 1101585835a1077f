package middleware

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/simplejorm/core"
	"github.com/shrek82/simplejorm/record"
)

func TestMemoryCache_OptIn(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	c := &counter{rows: sampleRows()}

	_, err := cache.Process(context.Background(), selectOp("users"), c.next)
	require.NoError(t, err)
	_, err = cache.Process(context.Background(), selectOp("users"), c.next)
	require.NoError(t, err)
	assert.Equal(t, 2, c.calls, "queries without WithCache are never cached")
	assert.Equal(t, 0, cache.Len())

	ctx := WithCache(context.Background(), 0)
	_, err = cache.Process(ctx, selectOp("users"), c.next)
	require.NoError(t, err)
	assert.Equal(t, 3, c.calls)
}

func TestMemoryCache_HitAndIsolation(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	c := &counter{rows: sampleRows()}
	ctx := WithCache(context.Background(), -1)

	first, err := cache.Process(ctx, selectOp("users"), c.next)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	first.Records[0].Set("name", "mallory")

	second, err := cache.Process(ctx, selectOp("users"), c.next)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, "alice", second.Records[0].Value("name"))

	second.Records[0].Set("tags", []any{"a", "b"})
	third, err := cache.Process(ctx, selectOp("users"), c.next)
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, third.Records[0].Value("tags"))
}

func TestMemoryCache_CountAndErrors(t *testing.T) {
	cache := NewMemoryCache()
	ctx := WithCache(context.Background(), time.Minute)

	c := &counter{count: 42}
	res, err := cache.Process(ctx, countOp("users"), c.next)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Count)

	res, err = cache.Process(ctx, countOp("users"), c.next)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Count)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, c.calls)

	failing := &counter{err: errBackend}
	_, err = cache.Process(ctx, selectOp("posts"), failing.next)
	assert.ErrorIs(t, err, errBackend)
	_, err = cache.Process(ctx, selectOp("posts"), failing.next)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, 2, failing.calls, "errors are not cached")
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	c := &counter{rows: sampleRows()}
	ctx := WithCache(context.Background(), 20*time.Millisecond)

	_, err := cache.Process(ctx, selectOp("users"), c.next)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	_, err = cache.Process(ctx, selectOp("users"), c.next)
	require.NoError(t, err)
	assert.Equal(t, 2, c.calls)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	c := &counter{rows: sampleRows()}
	var mu sync.Mutex
	next := func(ctx context.Context, op *core.Operation) (*core.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		return c.next(ctx, op)
	}
	ctx := WithCache(context.Background(), -1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := cache.Process(ctx, selectOp("users"), next)
			assert.NoError(t, err)
			assert.Len(t, res.Records, 1)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.calls, 20)
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_CancelledLeaderDoesNotFailWaiters(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	next := func(ctx context.Context, op *core.Operation) (*core.Result, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &core.Result{Records: sampleRows()}, nil
	}

	leaderCtx, cancel := context.WithCancel(WithCache(context.Background(), -1))
	leaderErr := make(chan error, 1)
	go func() {
		_, err := cache.Process(leaderCtx, selectOp("users"), next)
		leaderErr <- err
	}()
	<-entered

	type outcome struct {
		res *core.Result
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		res, err := cache.Process(WithCache(context.Background(), -1), selectOp("users"), next)
		waiter <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	got := <-waiter
	require.NoError(t, got.err)
	assert.Len(t, got.res.Records, 1)
	assert.Equal(t, int32(1), calls.Load(), "the waiter shares the leader's store call")
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_KeysKeepPredicateValuesApart(t *testing.T) {
	db, sqlDB := setupDB(t)
	_, err := sqlDB.Exec("INSERT INTO users (id, name) VALUES (3, 'a b'), (4, 'a'), (5, 'b')")
	require.NoError(t, err)
	require.NoError(t, db.Use(NewMemoryCache(time.Minute)))

	users := db.Entity("users").WithContext(WithCache(context.Background(), -1))
	names := func(rows []*record.Record) []any {
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r.Value("name")
		}
		return out
	}

	joined, err := users.WhereIn("name", []string{"a b"}).Get()
	require.NoError(t, err)
	assert.Equal(t, []any{"a b"}, names(joined))

	split, err := users.WhereIn("name", []string{"a", "b"}).Get()
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"a", "b"}, names(split))

	literal, err := users.WhereEq("tags", "<nil>").Get()
	require.NoError(t, err)
	assert.Empty(t, literal)

	null, err := users.WhereEq("tags", nil).Get()
	require.NoError(t, err)
	assert.Len(t, null, 4)

	spaced, err := users.Where("name = ?", "a b").Get()
	require.NoError(t, err)
	assert.Equal(t, []any{"a b"}, names(spaced))

	either, err := users.Where("name = ? OR name = ?", "a", "b").Get()
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"a", "b"}, names(either))
}

func TestMemoryCache_ThroughDB(t *testing.T) {
	db, _ := setupDB(t)
	cache := NewMemoryCache(time.Minute)
	c := &recorder{}
	require.NoError(t, db.Use(cache, c))

	ctx := WithCache(context.Background(), -1)
	q := db.Entity("users").WithContext(ctx).With("posts").OrderBy("id")

	first, err := q.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, c.calls)

	second, err := q.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, c.calls, "both the base and relation queries come from the cache")

	require.Len(t, second, 2)
	assert.Equal(t, first[0].Value("tags"), second[0].Value("tags"))
	assert.Equal(t, []any{"a", "b"}, second[0].Value("tags"))
	assert.Len(t, second[0].Value("posts"), 2)
}

// recorder counts the operations that reach the store.
type recorder struct {
	mu    sync.Mutex
	calls int
}

func (r *recorder) Name() string           { return "recorder" }
func (r *recorder) Init(db *core.DB) error { return nil }
func (r *recorder) Shutdown() error        { return nil }

func (r *recorder) Process(ctx context.Context, op *core.Operation, next core.QueryFunc) (*core.Result, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return next(ctx, op)
}
