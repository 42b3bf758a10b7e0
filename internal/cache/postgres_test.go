package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transcribe-cli/internal/config"
	"github.com/sells-group/transcribe-cli/internal/model"
)

func testCacheConfig(t *testing.T, driver string) config.CacheConfig {
	t.Helper()
	return config.CacheConfig{
		Driver:   driver,
		Path:     filepath.Join(t.TempDir(), "cache.db"),
		TTLHours: 336,
	}
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock, 336*time.Hour), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS transcriptions`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT text, profile, quality, created_at FROM transcriptions`).
		WithArgs("tq3:abc:def:ghi").
		WillReturnRows(pgxmock.NewRows([]string{"text", "profile", "quality", "created_at"}).
			AddRow("# Doc", "balanced", 0.88, created))

	got, err := s.Get(context.Background(), "tq3:abc:def:ghi")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "# Doc", got.Text)
	assert.Equal(t, model.ProfileBalanced, got.Profile)
	assert.InDelta(t, 0.88, got.Quality, 1e-9)
	assert.Equal(t, created, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT text, profile, quality, created_at FROM transcriptions`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT text, profile, quality, created_at FROM transcriptions`).
		WithArgs("key").
		WillReturnError(errors.New("connection lost"))

	_, err := s.Get(context.Background(), "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get transcription")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Put(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO transcriptions`).
		WithArgs(pgxmock.AnyArg(), "key", "text body", "economy", 0.7, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Put(context.Background(), "key", model.CacheEntry{
		Text:    "text body",
		Profile: model.ProfileEconomy,
		Quality: 0.7,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM transcriptions WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
