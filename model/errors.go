package model

import "errors"

var (
	// ErrModelNotFound is returned when no model is registered under a name.
	ErrModelNotFound = errors.New("model not found")
	// ErrInvalidModel is returned when a model or relation definition is incomplete.
	ErrInvalidModel = errors.New("invalid model")
)
