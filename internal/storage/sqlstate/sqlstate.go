// Package sqlstate is the database/sql engine shared by the SQLite, SQL
// Server and MySQL state backends. The backends differ only in their Dialect.
package sqlstate

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"eksupdater/internal/period"
	"eksupdater/internal/storage"
)

// Dialect supplies the statements of one database.
type Dialect struct {
	Name string

	// CreateTable returns an idempotent CREATE TABLE for table.
	CreateTable func(table string) string

	// Upsert returns a statement taking (dataset_id, last_processed,
	// updated_at) as its three parameters.
	Upsert func(table string) string

	// Select returns a statement yielding (dataset_id, last_processed).
	Select func(table string) string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidTable reports whether name is safe to interpolate into SQL.
func ValidTable(name string) bool { return identRe.MatchString(name) }

// Store implements storage.Store over a *sql.DB.
type Store struct {
	db      *sql.DB
	table   string
	dialect Dialect
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open pings db and creates the state table when it does not exist. On
// error the caller still owns db.
func Open(ctx context.Context, db *sql.DB, table string, d Dialect) (*Store, error) {
	if !ValidTable(table) {
		return nil, fmt.Errorf("%s: invalid table name %q", d.Name, table)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("%s: ping: %w", d.Name, err)
	}
	if _, err := db.ExecContext(ctx, d.CreateTable(table)); err != nil {
		return nil, fmt.Errorf("%s: create %s: %w", d.Name, table, err)
	}
	return &Store{db: db, table: table, dialect: d, now: time.Now}, nil
}

// Load reads all rows of the state table.
func (s *Store) Load(ctx context.Context) (storage.State, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Select(s.table))
	if err != nil {
		return nil, fmt.Errorf("%s: load state: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	st := storage.State{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%s: scan state: %w", s.dialect.Name, err)
		}
		ym, err := period.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: dataset %s: %w", s.dialect.Name, id, err)
		}
		st[id] = ym
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: load state: %w", s.dialect.Name, err)
	}
	return st, nil
}

// Save upserts the row of datasetID in a single statement.
func (s *Store) Save(ctx context.Context, datasetID string, ym period.YearMonth) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Upsert(s.table), datasetID, ym.String(), s.now().UTC())
	if err != nil {
		return fmt.Errorf("%s: save state for %s: %w", s.dialect.Name, datasetID, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
