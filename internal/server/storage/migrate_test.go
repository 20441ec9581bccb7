package storage_test

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/iudanet/gophcache/internal/server/storage"
)

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	fsys := fstest.MapFS{
		"migrations/00001_things.sql": &fstest.MapFile{Data: []byte(
			"-- +goose Up\nCREATE TABLE things (id TEXT PRIMARY KEY);\n\n-- +goose Down\nDROP TABLE things;\n",
		)},
	}

	tests := []struct {
		name    string
		dir     string
		wantErr string
	}{
		{name: "applies", dir: "migrations"},
		{name: "missing dir", dir: "nowhere", wantErr: "failed to create goose provider"},
		{name: "bad dir", dir: "../x", wantErr: "failed to open migrations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := sql.Open("sqlite", ":memory:")
			require.NoError(t, err)
			db.SetMaxOpenConns(1)
			defer func() {
				_ = db.Close()
			}()

			err = storage.Migrate(ctx, db, goose.DialectSQLite3, fsys, tt.dir)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			_, err = db.ExecContext(ctx, `INSERT INTO things (id) VALUES ('a')`)
			assert.NoError(t, err)

			// повторный запуск ничего не делает
			assert.NoError(t, storage.Migrate(ctx, db, goose.DialectSQLite3, fsys, tt.dir))
		})
	}
}
