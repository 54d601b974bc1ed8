// Package storage provides the embedded SQLite storage layer for the
// curation core. It manages a single writer connection serialized by a
// mutex (SQLite allows only one writer at a time regardless of journal
// mode), and a separate handle used only for reads so concurrent reads
// aren't blocked behind writer transactions.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps a writer *sql.DB (serialized by writeMu) and a reader *sql.DB
// (safe for concurrent use under WAL).
type DB struct {
	writer *sql.DB
	reader *sql.DB
	writeMu sync.Mutex
	logger  *slog.Logger
}

// Open creates a new DB backed by the SQLite file at path. Use ":memory:"
// for an ephemeral in-process database (tests typically use a temp file
// instead, since ":memory:" connections aren't shared across *sql.DB pools).
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("storage: open reader: %w", err)
	}

	if err := writer.PingContext(ctx); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	return &DB{writer: writer, reader: reader, logger: logger}, nil
}

// Close releases both underlying connections.
func (db *DB) Close() error {
	werr := db.writer.Close()
	rerr := db.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Reader returns the handle readers should use for SELECT-only queries.
func (db *DB) Reader() *sql.DB { return db.reader }

// withTx runs fn inside a single writer transaction, serialized against every
// other writer on this DB. fn's error, if any, rolls the transaction back.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}
	return nil
}
