package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	key        TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	match_type TEXT NOT NULL DEFAULT 'exact',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	written_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_enrichment_cache_written_at ON enrichment_cache(written_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, key string) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, data, match_type, confidence, written_at FROM enrichment_cache WHERE key = $1`,
		key,
	)

	var e Entry
	err := row.Scan(&e.Key, &e.Data, &e.MatchType, &e.Confidence, &e.WrittenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get entry")
	}
	return &e, nil
}

func (s *PostgresStore) PutEntry(ctx context.Context, e *Entry) error {
	writtenAt := e.WrittenAt
	if writtenAt.IsZero() {
		writtenAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_cache (key, data, match_type, confidence, written_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET
			data = EXCLUDED.data,
			match_type = EXCLUDED.match_type,
			confidence = EXCLUDED.confidence,
			written_at = EXCLUDED.written_at`,
		e.Key, e.Data, e.MatchType, e.Confidence, writtenAt,
	)
	return eris.Wrapf(err, "postgres: put entry %s", e.Key)
}

func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM enrichment_cache ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "postgres: scan key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "postgres: iterate keys")
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM enrichment_cache WHERE key = $1`, key)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete entry %s", key)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM enrichment_cache`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count entries")
}
