package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/shrek82/simplejorm/core"
	"github.com/shrek82/simplejorm/logger"
	"github.com/shrek82/simplejorm/middleware"
)

// NewLogger builds the logger described by the log section.
func (c *Config) NewLogger() (logger.Logger, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(c.Log.Format)
	if err != nil {
		return nil, err
	}
	l := logger.NewStdLogger()
	l.SetLevel(level)
	l.SetFormat(format)
	return l, nil
}

// newTracing builds the tracing middleware, exporting to zipkin when an
// endpoint is configured.
func (c *Config) newTracing() (*middleware.TracingMiddleware, error) {
	if c.Tracing.ZipkinEndpoint == "" {
		return middleware.NewTracing(), nil
	}
	exporter, err := zipkin.New(c.Tracing.ZipkinEndpoint)
	if err != nil {
		return nil, fmt.Errorf("zipkin exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", c.Tracing.ServiceName),
		)),
	)
	return middleware.NewTracingWithProvider(tp), nil
}

// Middlewares returns the middlewares the config enables, outermost first:
// tracing, metrics, slow log, the cache, then the circuit breaker closest
// to the store so that cache hits are served while it is open.
func (c *Config) Middlewares() ([]core.QueryMiddleware, error) {
	var mws []core.QueryMiddleware
	if c.Tracing.Enabled {
		tracing, err := c.newTracing()
		if err != nil {
			return nil, err
		}
		mws = append(mws, tracing)
	}
	if c.Metrics.Enabled {
		mws = append(mws, middleware.NewMetrics(c.Metrics.Namespace, ""))
	}
	if c.SlowThreshold > 0 {
		mws = append(mws, middleware.NewSlowLog(c.SlowThreshold, c.SlowLogPath))
	}
	switch c.Cache.Driver {
	case "memory":
		mws = append(mws, middleware.NewMemoryCache(c.Cache.TTL))
	case "lru":
		mws = append(mws, middleware.NewLRUCache(c.Cache.Size, c.Cache.TTL))
	case "redis":
		cache := middleware.NewRedisCache(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		cache.DefaultTTL = c.Cache.TTL
		mws = append(mws, cache)
	}
	if c.Breaker.Threshold > 0 {
		mws = append(mws, middleware.NewCircuitBreaker(c.Breaker.Threshold, c.Breaker.ResetTimeout))
	}
	return mws, nil
}

// Open connects to the configured database and registers the configured
// entities and middlewares.
func (c *Config) Open() (*core.DB, error) {
	l, err := c.NewLogger()
	if err != nil {
		return nil, err
	}
	db, err := core.Open(c.Driver, c.DSN, c.PoolOptions())
	if err != nil {
		return nil, err
	}
	if err := c.setup(db, l); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (c *Config) setup(db *core.DB, l logger.Logger) error {
	db.SetLogger(l)
	if err := db.Registry().RegisterDefinitions(c.Entities...); err != nil {
		return err
	}
	mws, err := c.Middlewares()
	if err != nil {
		return err
	}
	return db.Use(mws...)
}
