package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/transcribe-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, ttl: ttl}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id          TEXT PRIMARY KEY,
	cache_key   TEXT NOT NULL UNIQUE,
	text        TEXT NOT NULL,
	profile     TEXT NOT NULL,
	quality     REAL NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_expires_at ON transcriptions(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT text, profile, quality, created_at, expires_at FROM transcriptions WHERE cache_key = ?`,
		key,
	)

	var entry model.CacheEntry
	var profile string
	var expiresAt time.Time
	err := row.Scan(&entry.Text, &profile, &entry.Quality, &entry.CreatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get transcription")
	}

	if !time.Now().UTC().Before(expiresAt) {
		// Expired entries are evicted on read and reported as misses.
		if _, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE cache_key = ?`, key); err != nil {
			return nil, eris.Wrap(err, "sqlite: evict expired transcription")
		}
		return nil, nil
	}

	entry.Profile = model.Profile(profile)
	return &entry, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, entry model.CacheEntry) error {
	now := entry.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	expiresAt := now.Add(s.ttl)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (id, cache_key, text, profile, quality, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   text = excluded.text, profile = excluded.profile,
		   quality = excluded.quality, created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		uuid.New().String(), key, entry.Text, string(entry.Profile), entry.Quality, now, expiresAt,
	)
	return eris.Wrap(err, "sqlite: put transcription")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transcriptions WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired transcriptions")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
