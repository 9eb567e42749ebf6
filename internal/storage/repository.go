// Package storage persists the resumption state of the updater: for every
// dataset, the last month whose export file was fully uploaded.
//
// Backends register a factory under a kind name in their init function; the
// CLI blank-imports storage/all and picks one with storage.New. The default
// kind "file" keeps the state in a small JSON document.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"eksupdater/internal/period"
)

// DefaultTable is the table SQL backends keep the state in.
const DefaultTable = "resumption_state"

// State maps a dataset id to its last processed month.
type State map[string]period.YearMonth

// Store loads and saves resumption state.
//
// Load of a store that was never written returns an empty State and no
// error. Save must be atomic: after a crash the store holds either the old
// or the new month for the dataset, never a partial write.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, datasetID string, ym period.YearMonth) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Kind is "file", "sqlite", "postgres", "mssql", "mysql" or "mongo".
	Kind string

	// DSN is the connection string; for "file" it is the state file path.
	DSN string

	// Table overrides DefaultTable for SQL backends.
	Table string
}

// Factory opens a Store for a registered kind.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on a duplicate
// registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("storage: duplicate registration of " + kind)
	}
	factories[kind] = f
}

// New opens the Store selected by cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	s, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", cfg.Kind, err)
	}
	return s, nil
}

// Kinds lists the registered backends.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
