package database_test

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/stitts-dev/fpl-squad-optimizer/internal/store"
	"github.com/stitts-dev/fpl-squad-optimizer/pkg/database"
)

func openMemory(t *testing.T) *database.DB {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := database.DefaultConnectionConfig("")
	cfg.Dialector = sqlite.Open("file::memory:")
	cfg.MaxIdleConns = 1
	cfg.MaxOpenConns = 1
	cfg.ConnMaxLifetime = 0
	cfg.Logger = log

	db, err := database.NewConnectionWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHealthCheck_ReportsMissingPlayerTables(t *testing.T) {
	db := openMemory(t)

	err := db.HealthCheck()
	assert.ErrorIs(t, err, database.ErrPlayerTablesMissing)
	assert.Contains(t, err.Error(), database.PlayersTable)
	assert.Equal(t, []string{database.PlayersTable, database.SnapshotMetaTable}, db.MissingPlayerTables(context.Background()))
}

func TestHealthCheck_OKAfterPlayerStoreMigration(t *testing.T) {
	db := openMemory(t)

	log := logrus.New()
	log.SetOutput(io.Discard)
	require.NoError(t, store.NewPlayerRepository(db.DB, log).Migrate())

	assert.Empty(t, db.MissingPlayerTables(context.Background()))
	assert.NoError(t, db.HealthCheck())
}

func TestHealthCheck_FailsAfterClose(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, db.Close())

	assert.Error(t, db.HealthCheck())
}

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := database.DefaultConnectionConfig("postgres://fpl@localhost/fpl")

	assert.Equal(t, "postgres://fpl@localhost/fpl", cfg.DatabaseURL)
	assert.Nil(t, cfg.Dialector, "postgres is chosen from the URL")
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Positive(t, cfg.SlowQuery)
}
