// Package sqlite keeps resumption state in a SQLite database using the pure
// Go modernc.org/sqlite driver.
//
// DSN examples:
//
//	"state.db"
//	"file:state.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"eksupdater/internal/storage"
	"eksupdater/internal/storage/sqlstate"
)

// Dialect is the SQLite flavour of the state statements.
var Dialect = sqlstate.Dialect{
	Name: "sqlite",
	CreateTable: func(t string) string {
		return `CREATE TABLE IF NOT EXISTS ` + t + ` (
	dataset_id     TEXT PRIMARY KEY,
	last_processed TEXT NOT NULL,
	updated_at     TIMESTAMP NOT NULL
)`
	},
	Upsert: func(t string) string {
		return `INSERT INTO ` + t + ` (dataset_id, last_processed, updated_at) VALUES (?, ?, ?)
ON CONFLICT(dataset_id) DO UPDATE SET
	last_processed = excluded.last_processed,
	updated_at = excluded.updated_at`
	},
	Select: func(t string) string {
		return `SELECT dataset_id, last_processed FROM ` + t
	},
}

// Open opens the database at dsn and prepares the state table.
func Open(ctx context.Context, dsn, table string) (*sqlstate.Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the pool's connections.
	db.SetMaxOpenConns(1)

	s, err := sqlstate.Open(ctx, db, table, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg.DSN, cfg.Table)
	})
}
