package sqlite

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophcache/internal/models"
	"github.com/iudanet/gophcache/internal/server/storage"
	"github.com/iudanet/gophcache/internal/server/storage/storagetest"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	// Используем in-memory database для тестов
	s, err := New(context.Background(), MemoryPath)
	require.NoError(t, err)
	return s
}

func TestStorage_EntityStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.EntityStorage {
		return setupTestStorage(t)
	})
}

func TestStorage_Migrations(t *testing.T) {
	s := setupTestStorage(t)
	defer func() {
		_ = s.Close()
	}()

	var name string
	err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'entities'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "entities", name)
}

func TestStorage_Timestamps(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	defer func() {
		_ = s.Close()
	}()

	created := time.Unix(1000, 0)
	s.now = func() time.Time { return created }
	_, err := s.Create(ctx, "widgets", models.Entity{"id": "1"})
	require.NoError(t, err)

	s.now = func() time.Time { return created.Add(time.Hour) }
	_, err = s.Update(ctx, "widgets", "1", models.Entity{"name": "gear"})
	require.NoError(t, err)

	var createdAt, updatedAt int64
	err = s.DB().QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM entities WHERE collection = ? AND id = ?`, "widgets", "1",
	).Scan(&createdAt, &updatedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), createdAt)
	assert.Equal(t, int64(4600), updatedAt)
}

func TestStorage_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	defer func() {
		_ = s.Close()
	}()

	for _, id := range []string{"c", "a", "b"} {
		_, err := s.Create(ctx, "widgets", models.Entity{"id": id})
		require.NoError(t, err)
	}

	list, err := s.List(ctx, "widgets")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID())
	assert.Equal(t, "a", list[1].ID())
	assert.Equal(t, "b", list[2].ID())
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantWAL bool
		prefix  string
	}{
		{name: "memory", path: MemoryPath, prefix: ":memory:?"},
		{name: "shared memory", path: "file:cache?mode=memory&cache=shared", prefix: "file:cache?mode=memory&cache=shared&"},
		{name: "file", path: "/var/lib/gophcache.db", wantWAL: true, prefix: "/var/lib/gophcache.db?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dsn(tt.path)
			require.True(t, strings.HasPrefix(got, tt.prefix), got)

			_, query, _ := strings.Cut(got, "?")
			values, err := url.ParseQuery(query)
			require.NoError(t, err)

			assert.Equal(t, "immediate", values.Get("_txlock"))
			assert.Contains(t, values["_pragma"], "busy_timeout(5000)")
			assert.Contains(t, values["_pragma"], "foreign_keys(1)")
			if tt.wantWAL {
				assert.Contains(t, values["_pragma"], "journal_mode(WAL)")
			} else {
				assert.NotContains(t, values["_pragma"], "journal_mode(WAL)")
			}
		})
	}
}

func TestStorage_FileReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entities.db")

	s, err := New(ctx, path)
	require.NoError(t, err)

	var mode string
	require.NoError(t, s.DB().QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))

	_, err = s.Create(ctx, "widgets", models.Entity{"id": "1", "name": "gear"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// миграции уже применены, данные на месте
	s, err = New(ctx, path)
	require.NoError(t, err)
	defer func() {
		_ = s.Close()
	}()

	got, err := s.Get(ctx, "widgets", "1")
	require.NoError(t, err)
	assert.Equal(t, "gear", got["name"])
}
