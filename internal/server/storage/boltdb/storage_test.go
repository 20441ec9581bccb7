package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophcache/internal/models"
	"github.com/iudanet/gophcache/internal/server/storage"
	"github.com/iudanet/gophcache/internal/server/storage/storagetest"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	return s
}

func TestStorage_EntityStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.EntityStorage {
		return setupTestStorage(t)
	})
}

func TestNew_CreatesRootBucket(t *testing.T) {
	s := setupTestStorage(t)
	defer func() {
		assert.NoError(t, s.Close())
	}()

	err := s.db.View(func(tx *bbolt.Tx) error {
		assert.NotNil(t, tx.Bucket(bucketCollections))
		return nil
	})
	require.NoError(t, err)
}

func TestStorage_Reopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(ctx, dbPath)
	require.NoError(t, err)
	_, err = s.Create(ctx, "widgets", models.Entity{"id": "1", "name": "gear"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() {
		_ = s.Close()
	}()

	got, err := s.Get(ctx, "widgets", "1")
	require.NoError(t, err)
	assert.Equal(t, "gear", got["name"])
}

func TestStorage_UnknownCollection(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	defer func() {
		_ = s.Close()
	}()

	list, err := s.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := s.DeleteMany(ctx, "nothing", []string{"1"})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Update(ctx, "nothing", "1", models.Entity{})
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)
}

func TestClose_Twice(t *testing.T) {
	s := &Storage{}
	assert.NoError(t, s.Close())
}
