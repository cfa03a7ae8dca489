package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsFromFS_Embedded(t *testing.T) {
	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, int64(1), migrations[0].Version)
	assert.Equal(t, "init", migrations[0].Name)
	assert.Contains(t, migrations[0].UpSQL, "CREATE TABLE IF NOT EXISTS orders")
	assert.Contains(t, migrations[0].UpSQL, "ON DELETE CASCADE")
	assert.Contains(t, migrations[0].DownSQL, "DROP TABLE IF EXISTS orders")
}

func TestLoadMigrationsFromFS_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0002_more.up.sql":   {Data: []byte("CREATE TABLE b (id INT);")},
		"sql/migrations/0002_more.down.sql": {Data: []byte("DROP TABLE b;")},
		"sql/migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INT);")},
		"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE a;")},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, int64(1), migrations[0].Version)
	assert.Equal(t, "more", migrations[1].Name)
}

func TestLoadMigrationsFromFS_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "missing down",
			fsys:    fstest.MapFS{"sql/migrations/0001_init.up.sql": {Data: []byte("SELECT 1;")}},
			wantErr: "both up and down",
		},
		{
			name:    "bad file name",
			fsys:    fstest.MapFS{"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")}},
			wantErr: "invalid migration file name",
		},
		{
			name: "empty body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("   \n")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE a;")},
			},
			wantErr: "migration file is empty",
		},
		{
			name: "name mismatch",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("SELECT 1;")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "name mismatch",
		},
		{
			name:    "no files",
			fsys:    fstest.MapFS{},
			wantErr: "no migration files found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrationsFromFS(tt.fsys)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func testMigrations() []migration {
	return []migration{
		{Version: 1, Name: "init", UpSQL: "CREATE TABLE a (id INT);", DownSQL: "DROP TABLE a;"},
		{Version: 2, Name: "more", UpSQL: "CREATE TABLE b (id INT);", DownSQL: "DROP TABLE b;"},
		{Version: 3, Name: "last", UpSQL: "CREATE TABLE c (id INT);", DownSQL: "DROP TABLE c;"},
	}
}

func versionsOf(plan []migration) []int64 {
	versions := make([]int64, 0, len(plan))
	for _, m := range plan {
		versions = append(versions, m.Version)
	}
	return versions
}

func TestPlanMigrations_Up(t *testing.T) {
	all := testMigrations()
	applied := map[int64]string{1: all[0].checksum()}

	plan, err := planMigrations(all, applied, migrationUp, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, versionsOf(plan))

	plan, err = planMigrations(all, applied, migrationUp, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, versionsOf(plan))
}

func TestPlanMigrations_UpDetectsModifiedScript(t *testing.T) {
	all := testMigrations()
	applied := map[int64]string{1: "stale"}

	_, err := planMigrations(all, applied, migrationUp, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1_init was modified")
}

func TestPlanMigrations_DownNewestFirst(t *testing.T) {
	all := testMigrations()
	applied := map[int64]string{1: "x", 2: "y", 3: "z"}

	plan, err := planMigrations(all, applied, migrationDown, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, versionsOf(plan))

	_, err = planMigrations(all, map[int64]string{9: "x"}, migrationDown, 1)
	assert.ErrorContains(t, err, "unknown migration version 9")

	plan, err = planMigrations(all, map[int64]string{}, migrationDown, 1)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestPlanMigrations_UnsupportedDirection(t *testing.T) {
	_, err := planMigrations(testMigrations(), nil, migrationDirection("sideways"), 0)
	assert.Error(t, err)
}
