// Package file implements the default resumption state backend: a versioned
// JSON document rewritten atomically on every Save.
//
//	{
//	  "version": 1,
//	  "updated_at": "2018-04-02T06:00:00Z",
//	  "datasets": {"zakazky": "2018-3"}
//	}
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"eksupdater/internal/period"
	"eksupdater/internal/storage"
)

// DefaultPath is used when no DSN is configured.
const DefaultPath = "datastore_updater.state"

// formatVersion is the envelope version this package writes.
const formatVersion = 1

type envelope struct {
	Version   int                         `json:"version"`
	UpdatedAt time.Time                   `json:"updated_at"`
	Datasets  map[string]period.YearMonth `json:"datasets"`
}

// Store keeps state in a single JSON file.
type Store struct {
	path string
	now  func() time.Time

	mu    sync.Mutex
	state storage.State
}

var _ storage.Store = (*Store)(nil)

// New returns a Store for path. The file need not exist.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, now: time.Now}
}

func init() {
	storage.Register("file", func(_ context.Context, cfg storage.Config) (storage.Store, error) {
		return New(cfg.DSN), nil
	})
}

// Path is the state file location.
func (s *Store) Path() string { return s.path }

// Load reads the state file. A missing file is an empty state.
func (s *Store) Load(ctx context.Context) (storage.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return nil, err
	}
	s.state = st
	return copyState(st), nil
}

// Save records ym for datasetID and rewrites the file through a temporary
// file in the same directory followed by a rename.
func (s *Store) Save(ctx context.Context, datasetID string, ym period.YearMonth) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		st, err := s.read()
		if err != nil {
			return err
		}
		s.state = st
	}
	next := copyState(s.state)
	next[datasetID] = ym

	if err := s.write(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Close is a no-op; every Save is already durable.
func (s *Store) Close() error { return nil }

func (s *Store) read() (storage.State, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return storage.State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", s.path, err)
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	if env.Version != formatVersion {
		return nil, fmt.Errorf("state %s: unsupported version %d", s.path, env.Version)
	}
	st := storage.State{}
	for id, ym := range env.Datasets {
		st[id] = ym
	}
	return st, nil
}

func (s *Store) write(st storage.State) error {
	env := envelope{Version: formatVersion, UpdatedAt: s.now().UTC(), Datasets: st}
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace state %s: %w", s.path, err)
	}
	return nil
}

func copyState(st storage.State) storage.State {
	out := make(storage.State, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}
