// Package storagetest holds the behaviour every EntityStorage implementation
// must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophcache/internal/models"
	"github.com/iudanet/gophcache/internal/server/storage"
)

// Run executes the suite. open must return an empty storage; it is closed
// by the suite.
func Run(t *testing.T, open func(t *testing.T) storage.EntityStorage) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.EntityStorage)
	}{
		{name: "CreateAndGet", fn: testCreateAndGet},
		{name: "CreateDuplicate", fn: testCreateDuplicate},
		{name: "CreateWithoutID", fn: testCreateWithoutID},
		{name: "List", fn: testList},
		{name: "Update", fn: testUpdate},
		{name: "Delete", fn: testDelete},
		{name: "DeleteMany", fn: testDeleteMany},
		{name: "CollectionsAreIsolated", fn: testIsolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			defer func() {
				assert.NoError(t, s.Close())
			}()
			tt.fn(t, s)
		})
	}
}

func testCreateAndGet(t *testing.T, s storage.EntityStorage) {
	ctx := context.Background()

	created, err := s.Create(ctx, "widgets", models.Entity{
		"id":    float64(7),
		"name":  "gear",
		"parts": []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "7", created.ID())

	got, err := s.Get(ctx, "widgets", "7")
	require.NoError(t, err)
	assert.Equal(t, float64(7), got["id"])
	assert.Equal(t, "gear", got["name"])
	assert.Equal(t, []any{"a", "b"}, got["parts"])

	_, err = s.Get(ctx, "widgets", "8")
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)
}

func testCreateDuplicate(t *testing.T, s storage.EntityStorage) {
	ctx := context.Background()

	_, err := s.Create(ctx, "widgets", models.Entity{"id": "a"})
	require.NoError(t, err)

	_, err = s.Create(ctx, "widgets", models.Entity{"id": "a", "name": "again"})
	assert.ErrorIs(t, err, storage.ErrEntryExists)
}

func testCreateWithoutID(t *testing.T, s storage.EntityStorage) {
	_, err := s.Create(context.Background(), "widgets", models.Entity{"name": "anonymous"})
	assert.ErrorIs(t, err, storage.ErrInvalidEntity)
}

func testList(t *testing.T, s storage.EntityStorage) {
	ctx := context.Background()

	empty, err := s.List(ctx, "widgets")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"b", "a", "c"} {
		_, err := s.Create(ctx, "widgets", models.Entity{"id": id})
		require.NoError(t, err)
	}

	list, err := s.List(ctx, "widgets")
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID())
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func testUpdate(t *testing.T, s storage.EntityStorage) {
	ctx := context.Background()

	_, err := s.Create(ctx, "widgets", models.Entity{"id": "1", "name": "gear", "size": float64(3)})
	require.NoError(t, err)

	updated, err := s.Update(ctx, "widgets", "1", models.Entity{"id": "2", "name": "cog"})
	require.NoError(t, err)
	assert.Equal(t, models.Entity{"id": "1", "name": "cog", "size": float64(3)}, updated)

	got, err := s.Get(ctx, "widgets", "1")
	require.NoError(t, err)
	assert.Equal(t, "cog", got["name"])

	_, err = s.Update(ctx, "widgets", "404", models.Entity{"name": "x"})
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)
}

func testDelete(t *testing.T, s storage.EntityStorage) {
	ctx := context.Background()

	_, err := s.Create(ctx, "widgets", models.Entity{"id": "1"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "widgets", "1"))
	_, err = s.Get(ctx, "widgets", "1")
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "widgets", "1"), storage.ErrEntryNotFound)
}

func testDeleteMany(t *testing.T, s storage.EntityStorage) {
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := s.Create(ctx, "widgets", models.Entity{"id": id})
		require.NoError(t, err)
	}

	n, err := s.DeleteMany(ctx, "widgets", []string{"1", "3", "404"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := s.List(ctx, "widgets")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].ID())

	n, err = s.DeleteMany(ctx, "widgets", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testIsolation(t *testing.T, s storage.EntityStorage) {
	ctx := context.Background()

	_, err := s.Create(ctx, "widgets", models.Entity{"id": "1", "kind": "widget"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "parts", models.Entity{"id": "1", "kind": "part"})
	require.NoError(t, err)

	w, err := s.Get(ctx, "widgets", "1")
	require.NoError(t, err)
	assert.Equal(t, "widget", w["kind"])

	require.NoError(t, s.Delete(ctx, "parts", "1"))
	_, err = s.Get(ctx, "widgets", "1")
	assert.NoError(t, err)
}
