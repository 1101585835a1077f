package core

import (
	"errors"
	"fmt"

	"github.com/shrek82/simplejorm/model"
)

var (
	// ErrRecordNotFound is returned when a lookup expects records but some or all are missing.
	ErrRecordNotFound = errors.New("record not found")
	// ErrModelNotFound is returned when no model is registered for an entity name.
	ErrModelNotFound = model.ErrModelNotFound
	// ErrInvalidModel is returned when a model definition is invalid (e.g., a relation without keys).
	ErrInvalidModel = model.ErrInvalidModel
	// ErrInvalidQuery is returned when a query is malformed or cannot be executed.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRelationNotFound is returned when a requested relation does not exist on the model.
	ErrRelationNotFound = errors.New("relation not found")
	// ErrStopChunk can be returned from a Chunk callback to stop early without an error.
	ErrStopChunk = errors.New("stop chunk")
)

// NotFoundError reports which keys of an entity could not be found. It
// matches ErrRecordNotFound with errors.Is.
type NotFoundError struct {
	Entity string
	Keys   []any
}

func (e *NotFoundError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%s: %s", ErrRecordNotFound, e.Entity)
	}
	return fmt.Sprintf("%s: %s %v", ErrRecordNotFound, e.Entity, e.Keys)
}

func (e *NotFoundError) Unwrap() error { return ErrRecordNotFound }
