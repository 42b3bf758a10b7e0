package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/transcribe-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the postgres backend.
// pgxmock satisfies it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool, for deployments where the
// cache is shared across hosts.
type PostgresStore struct {
	pool    Pool
	ttl     time.Duration
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, ttl time.Duration) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, ttl: ttl, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool, ttl time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, ttl: ttl}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id          TEXT PRIMARY KEY,
	cache_key   TEXT NOT NULL UNIQUE,
	text        TEXT NOT NULL,
	profile     TEXT NOT NULL,
	quality     DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_expires_at ON transcriptions(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT text, profile, quality, created_at FROM transcriptions
		 WHERE cache_key = $1 AND expires_at > now()`,
		key,
	)

	var entry model.CacheEntry
	var profile string
	err := row.Scan(&entry.Text, &profile, &entry.Quality, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get transcription")
	}

	entry.Profile = model.Profile(profile)
	return &entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, entry model.CacheEntry) error {
	now := entry.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcriptions (id, cache_key, text, profile, quality, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   text = EXCLUDED.text, profile = EXCLUDED.profile,
		   quality = EXCLUDED.quality, created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at`,
		uuid.New().String(), key, entry.Text, string(entry.Profile), entry.Quality, now, now.Add(s.ttl),
	)
	return eris.Wrap(err, "postgres: put transcription")
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transcriptions WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired transcriptions")
	}
	return int(tag.RowsAffected()), nil
}
