package blobstore

import (
	"context"
	"database/sql"
	stderrors "errors"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

// PostgresStore persists snapshots in the snapshots table, one row per key.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, key string, body []byte) error {
	const query = `INSERT INTO snapshots (key, body, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key)
DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, key, body); err != nil {
		return crerr.Wrapf(err, "upsert snapshot key=%s", key)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, `SELECT body FROM snapshots WHERE key = $1`, key)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, crerr.Wrapf(err, "read snapshot key=%s", key)
	}
	return body, nil
}
