package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_SQLiteAppliesPragmas(t *testing.T) {
	database, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"), zap.NewNop(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	var fk int
	require.NoError(t, database.Get(&fk, `PRAGMA foreign_keys`))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, database.Get(&mode, `PRAGMA journal_mode`))
	assert.Equal(t, "wal", mode)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn", zap.NewNop(), Options{})
	assert.Error(t, err)
}

func TestOpen_GivesUpAfterMaxElapsed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Nothing listens on port 1.
	_, err := Open(ctx, DriverPostgres, "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1", zap.NewNop(),
		Options{MaxElapsed: 200 * time.Millisecond, MaxInterval: 50 * time.Millisecond})
	assert.Error(t, err)
}
