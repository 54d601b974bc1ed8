package storage

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// RunMigrations executes all SQL migration files from the provided
// filesystem in order. An EXCLUSIVE transaction serializes migrations
// across processes opening the same database file concurrently: without it,
// two processes racing a "does this table exist" check can both attempt the
// same CREATE TABLE and one loses.
func (db *DB) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("storage: read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.writer.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("storage: acquire exclusive migration lock: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = db.writer.ExecContext(ctx, "ROLLBACK")
		}
	}()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, entry.Name())
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", entry.Name(), err)
		}

		db.logger.Info("running migration", "file", entry.Name())
		if _, err := db.writer.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", entry.Name(), err)
		}
	}

	if _, err := db.writer.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("storage: commit migrations: %w", err)
	}
	committed = true
	return nil
}
