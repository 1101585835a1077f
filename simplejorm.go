// Package simplejorm reads rows as ordered records, decodes JSON columns
// and stitches one level of declared relations onto them.
package simplejorm

import (
	"github.com/shrek82/simplejorm/config"
	"github.com/shrek82/simplejorm/core"
	"github.com/shrek82/simplejorm/model"
	"github.com/shrek82/simplejorm/query"
	"github.com/shrek82/simplejorm/record"
)

// Re-export core types and functions
type DB = core.DB
type Query = core.Query
type Options = core.Options
type Pagination = core.Pagination
type SimplePagination = core.SimplePagination
type NotFoundError = core.NotFoundError

var (
	Open         = core.Open
	New          = core.New
	NewWithStore = core.NewWithStore
	WithQueryID  = core.WithQueryID

	ErrRecordNotFound   = core.ErrRecordNotFound
	ErrModelNotFound    = core.ErrModelNotFound
	ErrRelationNotFound = core.ErrRelationNotFound
	ErrInvalidQuery     = core.ErrInvalidQuery
	ErrStopChunk        = core.ErrStopChunk
)

// Re-export records and metadata
type Record = record.Record
type Model = model.Model
type Relation = model.Relation
type Spec = query.Spec
type Constraint = query.Constraint

var (
	NewRecord  = record.New
	NewModel   = model.New
	HasMany    = model.HasMany
	HasOne     = model.HasOne
	BelongsTo  = model.BelongsTo
	ManyToMany = model.ManyToMany
)

// LoadConfig loads a configuration file plus SIMPLEJORM_ environment
// overrides.
var LoadConfig = config.Load
