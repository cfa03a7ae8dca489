package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	embedded, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	latest := embedded[len(embedded)-1].Version

	require.NoError(t, store.MigrateDown(ctx, 100))
	state, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationState{Pending: len(embedded)}, state)

	require.NoError(t, store.MigrateUp(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationState{Version: latest, Applied: len(embedded)}, state)

	// Повторный up ничего не меняет.
	require.NoError(t, store.MigrateUp(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationState{Version: latest, Applied: len(embedded)}, state)

	// steps=0 для down означает один шаг.
	require.NoError(t, store.MigrateDown(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(embedded)-1, state.Applied)
	assert.Equal(t, 1, state.Pending)

	require.NoError(t, store.MigrateDown(ctx, 100))
	require.NoError(t, store.MigrateDown(ctx, 1), "down on empty schema is a no-op")

	require.NoError(t, store.MigrateUp(ctx, 0))
}

func TestMigrator_GuardsAndUnsupportedDirection(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.ErrorIs(t, nilStore.MigrateUp(ctx, 0), errStoreNotInitialized)
	assert.ErrorIs(t, nilStore.MigrateDown(ctx, 1), errStoreNotInitialized)
	_, err := nilStore.MigrationStatus(ctx)
	assert.ErrorIs(t, err, errStoreNotInitialized)

	store := openRawPostgresStoreForIntegrationTest(t)
	assert.Error(t, store.migrate(ctx, migrationDirection("sideways"), 0))
}
