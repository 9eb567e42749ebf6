// Package mysql keeps resumption state in MySQL or MariaDB through
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"eksupdater/internal/storage"
	"eksupdater/internal/storage/sqlstate"
)

// Dialect is the MySQL flavour of the state statements. VALUES() in the
// upsert keeps MariaDB working.
var Dialect = sqlstate.Dialect{
	Name: "mysql",
	CreateTable: func(t string) string {
		return `CREATE TABLE IF NOT EXISTS ` + t + ` (
	dataset_id     VARCHAR(128) NOT NULL PRIMARY KEY,
	last_processed VARCHAR(16)  NOT NULL,
	updated_at     DATETIME(6)  NOT NULL
)`
	},
	Upsert: func(t string) string {
		return `INSERT INTO ` + t + ` (dataset_id, last_processed, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
	last_processed = VALUES(last_processed),
	updated_at = VALUES(updated_at)`
	},
	Select: func(t string) string {
		return `SELECT dataset_id, last_processed FROM ` + t
	},
}

// Open connects to dsn, e.g. "eks:secret@tcp(db:3306)/eks".
func Open(ctx context.Context, dsn, table string) (*sqlstate.Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: dsn: %w", err)
	}
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	s, err := sqlstate.Open(ctx, db, table, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg.DSN, cfg.Table)
	})
}
