package middleware

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shrek82/simplejorm/core"
	"github.com/shrek82/simplejorm/record"
)

// RedisCacheMiddleware caches store results in Redis as JSON.
// Only queries whose context was marked with WithCache are cached.
// Values come back the way JSON carries them: integers as int64, other
// numbers as float64 and times as strings.
type RedisCacheMiddleware struct {
	Client     redis.UniversalClient
	Prefix     string
	DefaultTTL time.Duration // 0 means no expiration
}

func NewRedisCache(opt *redis.Options) *RedisCacheMiddleware {
	return &RedisCacheMiddleware{
		Client: redis.NewClient(opt),
		Prefix: "simplejorm:cache:",
	}
}

func (m *RedisCacheMiddleware) Name() string {
	return "RedisCache"
}

func (m *RedisCacheMiddleware) Init(db *core.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx).Err()
}

func (m *RedisCacheMiddleware) Shutdown() error {
	return m.Client.Close()
}

func (m *RedisCacheMiddleware) key(op *core.Operation) string {
	return m.Prefix + op.Entity + ":" + strconv.FormatUint(xxhash.Sum64String(op.Key()), 16)
}

func (m *RedisCacheMiddleware) Process(ctx context.Context, op *core.Operation, next core.QueryFunc) (*core.Result, error) {
	ttl, ok := cacheTTL(ctx, m.DefaultTTL)
	if !ok {
		return next(ctx, op)
	}

	key := m.key(op)
	val, err := m.Client.Get(ctx, key).Bytes()
	if err == nil {
		if res, ok := decodeCached(op.Kind, val); ok {
			return res, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Redis trouble must not fail the query.
		return next(ctx, op)
	}

	res, err := next(ctx, op)
	if err != nil {
		return nil, err
	}

	var data []byte
	if op.Kind == core.OpCount {
		data = []byte(strconv.FormatInt(res.Count, 10))
	} else if data, err = record.MarshalRecords(res.Records); err != nil {
		return res, nil
	}
	m.Client.Set(ctx, key, data, ttl)
	return res, nil
}

func decodeCached(kind core.OpKind, val []byte) (*core.Result, bool) {
	if kind == core.OpCount {
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return nil, false
		}
		return &core.Result{Count: n, Cached: true}, true
	}
	rows, err := record.UnmarshalRecords(val)
	if err != nil {
		return nil, false
	}
	return &core.Result{Records: rows, Cached: true}, true
}
