package blob

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SQLiteStore keeps blobs in the blobs table. Put is an idempotent
// overwrite; retried jobs rewrite the same content under the same key.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM blobs WHERE key = ?`, key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", key, err)
	}
	return body, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, body []byte) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, body, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		key, body, now, now)
	if err != nil {
		return fmt.Errorf("failed to put blob %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(body)).Msg("blob stored")
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blobs WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check blob %s: %w", key, err)
	}
	return true, nil
}
