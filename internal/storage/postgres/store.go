// Package postgres keeps resumption state in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"eksupdater/internal/period"
	"eksupdater/internal/storage"
	"eksupdater/internal/storage/sqlstate"
)

// Store implements storage.Store on PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	table string
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

// newPool is a test hook.
var newPool = pgxpool.New

// Open connects to dsn and creates the state table if needed.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	if !sqlstate.ValidTable(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	pool, err := newPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{pool: pool, table: table, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
	dataset_id     TEXT PRIMARY KEY,
	last_processed TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("postgres: create %s: %s (SQLSTATE %s)", s.table, pgErr.Message, pgErr.Code)
		}
		return fmt.Errorf("postgres: create %s: %w", s.table, err)
	}
	return nil
}

// Load reads every dataset row.
func (s *Store) Load(ctx context.Context) (storage.State, error) {
	rows, err := s.pool.Query(ctx, `SELECT dataset_id, last_processed FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("postgres: load state: %w", err)
	}
	type row struct {
		ID            string `db:"dataset_id"`
		LastProcessed string `db:"last_processed"`
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[row])
	if err != nil {
		return nil, fmt.Errorf("postgres: load state: %w", err)
	}

	st := storage.State{}
	for _, r := range collected {
		ym, err := period.Parse(r.LastProcessed)
		if err != nil {
			return nil, fmt.Errorf("postgres: dataset %s: %w", r.ID, err)
		}
		st[r.ID] = ym
	}
	return st, nil
}

// Save upserts the row of datasetID.
func (s *Store) Save(ctx context.Context, datasetID string, ym period.YearMonth) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO `+s.table+` (dataset_id, last_processed, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (dataset_id) DO UPDATE SET
	last_processed = EXCLUDED.last_processed,
	updated_at = EXCLUDED.updated_at`,
		datasetID, ym.String(), s.now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: save state for %s: %w", datasetID, err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg.DSN, cfg.Table)
	})
}
