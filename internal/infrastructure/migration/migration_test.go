package migration

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestGooseStrategy_SQLite(t *testing.T) {
	db := setupTestDB(t)

	strategy, err := NewGooseStrategy("sqlite")
	require.NoError(t, err)

	require.NoError(t, NewManagerWithStrategy(strategy).Migrate(db))
	assert.True(t, db.Migrator().HasTable("agents"))

	version, err := strategy.GetVersion(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Re-running is a no-op.
	require.NoError(t, strategy.Migrate(db))

	require.NoError(t, strategy.MigrateDown(db, 1))
	assert.False(t, db.Migrator().HasTable("agents"))
}

func TestNewGooseStrategy_UnknownDriver(t *testing.T) {
	_, err := NewGooseStrategy("postgres")
	assert.Error(t, err)
}

func TestNewManager(t *testing.T) {
	m, err := NewManager("development", "sqlite")
	require.NoError(t, err)
	assert.Equal(t, "gorm_auto_migrate", m.GetStrategy().GetName())

	m, err = NewManager("production", "mysql")
	require.NoError(t, err)
	assert.Equal(t, "goose", m.GetStrategy().GetName())

	_, err = NewManager("production", "oracle")
	assert.Error(t, err)
}

func TestGormAutoMigrateStrategy(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, NewGormAutoMigrateStrategy().Migrate(db))
	assert.True(t, db.Migrator().HasTable("agents"))
}

func TestScripts(t *testing.T) {
	for _, driver := range []string{"mysql", "sqlite"} {
		sub, err := Scripts(driver)
		require.NoError(t, err)
		entries, err := fs.ReadDir(sub, ".")
		require.NoError(t, err)
		assert.NotEmpty(t, entries, driver)
	}
}
