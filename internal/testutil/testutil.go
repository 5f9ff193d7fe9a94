// Package testutil opens migrated throwaway databases for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/db"
	"github.com/Simplici0/estimator/internal/migrations"
)

// NewDB returns a migrated SQLite database under t.TempDir, closed on cleanup.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), zap.NewNop(), db.Options{})
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if err := migrations.Up(ctx, database.DB, db.DriverSQLite, zap.NewNop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}
