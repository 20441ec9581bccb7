package storage

import "errors"

// Common storage errors
var (
	// ErrEntryNotFound indicates that the entity was not found in the collection
	ErrEntryNotFound = errors.New("entry not found")

	// ErrEntryExists indicates that an entity with this id already exists
	ErrEntryExists = errors.New("entry already exists")

	// ErrInvalidEntity indicates that the entity has no id
	ErrInvalidEntity = errors.New("invalid entity")
)
