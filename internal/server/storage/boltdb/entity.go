package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophcache/internal/models"
	"github.com/iudanet/gophcache/internal/server/storage"
)

var _ storage.EntityStorage = (*Storage)(nil)

// collection returns the bucket of a collection. With create set the bucket
// is created on demand (only inside a writable transaction).
func collection(tx *bbolt.Tx, name string, create bool) (*bbolt.Bucket, error) {
	root := tx.Bucket(bucketCollections)
	if root == nil {
		return nil, fmt.Errorf("collections bucket not found")
	}
	if !create {
		return root.Bucket([]byte(name)), nil
	}
	b, err := root.CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return b, nil
}

// List returns every entity of the collection in id order
func (s *Storage) List(ctx context.Context, name string) ([]models.Entity, error) {
	entities := make([]models.Entity, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := collection(tx, name, false)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			entity, err := decode(v)
			if err != nil {
				return err
			}
			entities = append(entities, entity)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// Get retrieves a single entity by id
func (s *Storage) Get(ctx context.Context, name, id string) (models.Entity, error) {
	var entity models.Entity

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := collection(tx, name, false)
		if err != nil {
			return err
		}
		if b == nil {
			return storage.ErrEntryNotFound
		}
		data := b.Get([]byte(id))
		if data == nil {
			return storage.ErrEntryNotFound
		}
		entity, err = decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// Create stores a new entity
func (s *Storage) Create(ctx context.Context, name string, entity models.Entity) (models.Entity, error) {
	id := entity.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", storage.ErrInvalidEntity)
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := collection(tx, name, true)
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) != nil {
			return storage.ErrEntryExists
		}
		if err := b.Put([]byte(id), data); err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Update merges changes into the stored entity
func (s *Storage) Update(ctx context.Context, name, id string, changes models.Entity) (models.Entity, error) {
	var merged models.Entity

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := collection(tx, name, false)
		if err != nil {
			return err
		}
		if b == nil {
			return storage.ErrEntryNotFound
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return storage.ErrEntryNotFound
		}
		existing, err := decode(raw)
		if err != nil {
			return err
		}

		merged = storage.Merge(existing, changes)
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to marshal entity: %w", err)
		}
		if err := b.Put([]byte(id), data); err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes one entity
func (s *Storage) Delete(ctx context.Context, name, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := collection(tx, name, false)
		if err != nil {
			return err
		}
		if b == nil || b.Get([]byte(id)) == nil {
			return storage.ErrEntryNotFound
		}
		if err := b.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete entity: %w", err)
		}
		return nil
	})
}

// DeleteMany removes the given ids in one transaction, missing ones are skipped
func (s *Storage) DeleteMany(ctx context.Context, name string, ids []string) (int, error) {
	var deleted int

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := collection(tx, name, false)
		if err != nil || b == nil {
			return err
		}
		for _, id := range ids {
			if b.Get([]byte(id)) == nil {
				continue
			}
			if err := b.Delete([]byte(id)); err != nil {
				return fmt.Errorf("failed to delete entity: %w", err)
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func decode(data []byte) (models.Entity, error) {
	var entity models.Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return entity, nil
}
