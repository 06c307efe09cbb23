package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// PostgresStore keeps cache entries in a single kv table with an
// expires_at column. Writes are upserts; expired rows count as misses
// and are removed opportunistically when hit.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

func NewPostgresStore(db *sql.DB, logger *slog.Logger) (*PostgresStore, error) {
	if _, err := db.Exec(createCacheTable); err != nil {
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	logger.Info("Postgres cache initialized")
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var expiresAt time.Time

	err := s.db.QueryRowContext(ctx,
		"SELECT data, expires_at FROM cache_entries WHERE key = $1", key,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres cache get %s: %w", key, err)
	}

	if time.Now().After(expiresAt) {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = $1", key); err != nil {
			s.logger.Warn("failed to delete expired cache row", "key", key, "error", err)
		}
		return nil, false, nil
	}
	return data, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	query := `INSERT INTO cache_entries (key, data, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`
	if _, err := s.db.ExecContext(ctx, query, key, data, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("postgres cache set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = $1", key); err != nil {
		return fmt.Errorf("postgres cache delete %s: %w", key, err)
	}
	return nil
}

// Ping reports backend health for the API health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
