package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iudanet/gophcache/internal/models"
	"github.com/iudanet/gophcache/internal/server/storage"
)

var _ storage.EntityStorage = (*Storage)(nil)

// codeUniqueViolation is the SQLSTATE of a UNIQUE constraint failure
const codeUniqueViolation = "23505"

// List returns every entity of the collection in insertion order
func (s *Storage) List(ctx context.Context, collection string) ([]models.Entity, error) {
	query := `
		SELECT data::text
		FROM entities
		WHERE collection = $1
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	entities := make([]models.Entity, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entity, err := decode(data)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entities, nil
}

// Get retrieves a single entity by id
func (s *Storage) Get(ctx context.Context, collection, id string) (models.Entity, error) {
	return s.get(ctx, s.db, collection, id, false)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) get(ctx context.Context, q queryer, collection, id string, forUpdate bool) (models.Entity, error) {
	query := `SELECT data::text FROM entities WHERE collection = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var data string
	if err := q.QueryRowContext(ctx, query, collection, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return decode(data)
}

// Create inserts a new entity
func (s *Storage) Create(ctx context.Context, collection string, entity models.Entity) (models.Entity, error) {
	id := entity.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", storage.ErrInvalidEntity)
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}

	query := `
		INSERT INTO entities (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, collection, id, string(data), s.now().Unix()); err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrEntryExists
		}
		return nil, fmt.Errorf("failed to insert entity: %w", err)
	}

	return decode(string(data))
}

// Update merges changes into the stored entity; the row is locked for the
// duration of the transaction
func (s *Storage) Update(ctx context.Context, collection, id string, changes models.Entity) (models.Entity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := s.get(ctx, tx, collection, id, true)
	if err != nil {
		return nil, err
	}

	merged := storage.Merge(existing, changes)
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}

	query := `
		UPDATE entities
		SET data = $1::jsonb, updated_at = $2
		WHERE collection = $3 AND id = $4
	`
	if _, err := tx.ExecContext(ctx, query, string(data), s.now().Unix(), collection, id); err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return merged, nil
}

// Delete removes one entity
func (s *Storage) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrEntryNotFound
	}

	return nil
}

// DeleteMany removes the given ids, missing ones are skipped
func (s *Storage) DeleteMany(ctx context.Context, collection string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args := deleteManyQuery(collection, ids)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entities: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// deleteManyQuery нумерует плейсхолдеры: $1 - коллекция, дальше id
func deleteManyQuery(collection string, ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+2)
		args = append(args, id)
	}

	query := `DELETE FROM entities WHERE collection = $1 AND id IN (` + strings.Join(placeholders, ", ") + `)`
	return query, args
}

func decode(data string) (models.Entity, error) {
	var entity models.Entity
	if err := json.Unmarshal([]byte(data), &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return entity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
