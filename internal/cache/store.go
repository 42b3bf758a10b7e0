// Package cache persists accepted transcriptions keyed by content
// fingerprint. The cache is an optimization, not a correctness dependency:
// callers treat read and write failures as misses.
package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/transcribe-cli/internal/config"
	"github.com/sells-group/transcribe-cli/internal/model"
)

// Store defines the transcription cache interface.
type Store interface {
	// Get returns the entry for key, or (nil, nil) on a miss. Entries past
	// their TTL are evicted and reported as misses.
	Get(ctx context.Context, key string) (*model.CacheEntry, error)

	// Put stores an entry under key. Last writer wins; keys are content
	// fingerprints, so colliding writes carry identical payloads.
	Put(ctx context.Context, key string, entry model.CacheEntry) error

	// DeleteExpired removes entries past their TTL and reports the count.
	DeleteExpired(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New creates a Store from configuration.
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.Path, ttl)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, ttl)
	default:
		return nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}
