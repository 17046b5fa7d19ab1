package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamline/trip-api/internal/migrate"
	"github.com/roamline/trip-api/internal/testutil"
)

func TestRun_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	ctx := context.Background()

	// SetupTestDB already migrated; a second run must be a no-op.
	require.NoError(t, migrate.Run(ctx, db))

	var applied bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = '0001_init')`,
	).Scan(&applied)
	require.NoError(t, err)
	assert.True(t, applied, "initial migration should be recorded exactly once")

	var count int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM schema_migrations WHERE version = '0001_init'`,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The schema the migration creates is actually in place.
	for _, table := range []string{"trips", "trip_steps", "jobs"} {
		var exists bool
		err = db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
			table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}
}
