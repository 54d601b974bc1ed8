// Package testutil provides shared test infrastructure: a temp-file SQLite
// storage.DB per test, migrated and ready to use, plus a quiet logger.
// Test files that need a real DB call OpenTestDB rather than hand-rolling
// the open/migrate/cleanup sequence; internal/review's tests keep their own
// equivalent helper.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/storage"
	"github.com/curationlabs/core/migrations"
)

// OpenTestDB opens a fresh SQLite-backed storage.DB in the test's temp
// directory, runs every migration, and registers cleanup to close it.
func OpenTestDB(t *testing.T) *storage.DB {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := storage.Open(ctx, dbPath, TestLogger())
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestLogger returns a logger that discards everything below warnings, so
// test output stays focused on assertion failures.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
