package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/shrek82/simplejorm/dialect"
	"github.com/shrek82/simplejorm/logger"
	"github.com/shrek82/simplejorm/model"
	"github.com/shrek82/simplejorm/pool"
	"github.com/shrek82/simplejorm/store"
)

// Options defines the configuration for the DB connection pool.
type Options = pool.Options

// DB is the main entry point. It holds the backing store, the entity
// metadata and the middleware chain, and creates queries.
type DB struct {
	store    store.Store
	pool     pool.Pool
	registry *model.Registry
	logger   logger.Logger

	mu          sync.RWMutex
	middlewares []QueryMiddleware
}

// Open initializes a new DB instance with the given driver and DSN.
func Open(driver, dsn string, opts *Options) (*DB, error) {
	d, ok := dialect.Get(driver)
	if !ok {
		return nil, fmt.Errorf("unknown dialect %s", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	p := pool.NewStdPool(sqlDB)
	opts.Apply(p)

	if err := p.PingContext(context.Background()); err != nil {
		_ = p.Close()
		return nil, err
	}

	return newDB(p, d), nil
}

// New wraps an already opened *sql.DB. driver selects the dialect.
func New(sqlDB *sql.DB, driver string) (*DB, error) {
	d, ok := dialect.Get(driver)
	if !ok {
		return nil, fmt.Errorf("unknown dialect %s", driver)
	}
	return newDB(pool.NewStdPool(sqlDB), d), nil
}

// NewWithStore creates a DB over any Store.
func NewWithStore(s store.Store) *DB {
	return &DB{
		store:    s,
		registry: model.NewRegistry(),
		logger:   logger.NewStdLogger(),
	}
}

func newDB(p pool.Pool, d dialect.Dialect) *DB {
	l := logger.NewStdLogger()
	db := NewWithStore(store.NewSQLStore(p, d, l))
	db.pool = p
	db.logger = l
	return db
}

// Close shuts down the middlewares and closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	mws := db.middlewares
	db.middlewares = nil
	db.mu.Unlock()

	var errs []error
	for _, mw := range mws {
		if err := mw.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mw.Name(), err))
		}
	}
	if db.pool != nil {
		if err := db.pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetLogger sets a custom logger for the DB and its SQL store. It may be
// called while queries are running.
func (db *DB) SetLogger(l logger.Logger) {
	db.mu.Lock()
	db.logger = l
	db.mu.Unlock()
	if s, ok := db.store.(interface{ SetLogger(logger.Logger) }); ok {
		s.SetLogger(l)
	}
}

func (db *DB) Logger() logger.Logger {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.logger
}

// Registry returns the entity metadata table.
func (db *DB) Registry() *model.Registry { return db.registry }

// Register adds models to the registry.
func (db *DB) Register(models ...*model.Model) error {
	return db.registry.Register(models...)
}

// Use initializes and appends middlewares. They run in the order given,
// the first one outermost.
func (db *DB) Use(mws ...QueryMiddleware) error {
	for _, mw := range mws {
		if err := mw.Init(db); err != nil {
			return fmt.Errorf("init %s: %w", mw.Name(), err)
		}
		db.mu.Lock()
		db.middlewares = append(db.middlewares, mw)
		db.mu.Unlock()
	}
	return nil
}

// Entity starts a query on a registered entity.
func (db *DB) Entity(name string) *Query {
	m, err := db.registry.Get(name)
	q := newQuery(db, m)
	q.err = err
	return q
}

// Model starts a query on the entity described by a tagged struct,
// registering it on first use.
func (db *DB) Model(value any) *Query {
	m, err := db.registry.Parse(value)
	q := newQuery(db, m)
	q.err = err
	return q
}

// Table starts a query on a table without declared relations.
func (db *DB) Table(name string) *Query {
	m := model.New(name, name)
	q := newQuery(db, m)
	if name == "" {
		q.err = fmt.Errorf("%w: table name is empty", ErrInvalidQuery)
	}
	return q
}

func (db *DB) handler() QueryFunc {
	db.mu.RLock()
	mws := append([]QueryMiddleware(nil), db.middlewares...)
	db.mu.RUnlock()
	return chain(mws, db.execute)
}

func (db *DB) execute(ctx context.Context, op *Operation) (*Result, error) {
	switch op.Kind {
	case OpCount:
		n, err := db.store.Count(ctx, op.Stmt)
		if err != nil {
			return nil, err
		}
		return &Result{Count: n}, nil
	default:
		rows, err := db.store.Select(ctx, op.Stmt)
		if err != nil {
			return nil, err
		}
		return &Result{Records: rows}, nil
	}
}
