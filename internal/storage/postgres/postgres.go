package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"mindcare-service/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Storage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// NewWithDB wraps an already opened handle without running migrations.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.postgres.Get"

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrKeyNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return value, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.postgres.Set"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Incr(ctx context.Context, key string) (int64, error) {
	const op = "storage.postgres.Incr"

	var n int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO kv_store (key, value)
		VALUES ($1, '1')
		ON CONFLICT (key)
		DO UPDATE SET value = (kv_store.value::bigint + 1)::text, updated_at = now()
		RETURNING value::bigint`,
		key,
	).Scan(&n)
	if err != nil {
		var pqErr *pq.Error
		// invalid_text_representation: the stored value is not a counter
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
			return 0, fmt.Errorf("%s: key %q does not hold an integer: %w", op, key, err)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}
