package storage

import (
	"context"

	"github.com/iudanet/gophcache/internal/models"
)

// EntityStorage defines persistence of the backend collections.
// Entities are JSON objects keyed by their id property inside a collection.
type EntityStorage interface {
	// List returns every entity of the collection.
	// Returns empty slice if the collection is empty or unknown
	List(ctx context.Context, collection string) ([]models.Entity, error)

	// Get returns ErrEntryNotFound if the entity doesn't exist
	Get(ctx context.Context, collection, id string) (models.Entity, error)

	// Create stores a new entity. The entity must carry an id.
	// Returns ErrEntryExists if the id is taken
	Create(ctx context.Context, collection string, entity models.Entity) (models.Entity, error)

	// Update merges changes into the stored entity and returns the result.
	// Returns ErrEntryNotFound if the entity doesn't exist
	Update(ctx context.Context, collection, id string, changes models.Entity) (models.Entity, error)

	// Delete returns ErrEntryNotFound if the entity doesn't exist
	Delete(ctx context.Context, collection, id string) error

	// DeleteMany removes the given ids and reports how many existed
	DeleteMany(ctx context.Context, collection string, ids []string) (int, error)

	Close() error
}

// Merge applies changes on top of existing. The stored id is kept.
func Merge(existing, changes models.Entity) models.Entity {
	out := existing.Clone()
	if out == nil {
		out = models.Entity{}
	}
	for k, v := range changes {
		if k == models.IDField {
			continue
		}
		out[k] = models.CloneValue(v)
	}
	return out
}
