package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/notebook-server/internal/repository"
	"github.com/prn-tf/notebook-server/internal/repository/repotest"
)

// testDSN points at a disposable database. Every table is emptied
// between subtests.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("NOTEBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NOTEBOOK_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

func newTestDB(t *testing.T, dsn string) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := NewDBFromURL(ctx, dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE notes, sources, notebooks, users, data_migrations`)
	require.NoError(t, err)
	return db
}

func TestRepositories(t *testing.T) {
	dsn := testDSN(t)
	repotest.Run(t, func(t *testing.T) repository.Backend {
		return newTestDB(t, dsn)
	})
}

func TestSchemaRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, testDSN(t))

	schema, err := db.Schema()
	require.NoError(t, err)

	require.NoError(t, schema.DownTo(ctx, repository.SchemaVersionInit))
	version, err := schema.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(repository.SchemaVersionInit), version)

	require.NoError(t, schema.Up(ctx))
	version, err = schema.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(repository.SchemaVersionDataMigrations), version)
}
