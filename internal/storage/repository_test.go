package storage

import (
	"context"
	"slices"
	"strings"
	"testing"

	"eksupdater/internal/period"
)

type memStore struct {
	cfg   Config
	state State
}

func (m *memStore) Load(context.Context) (State, error) { return m.state, nil }
func (m *memStore) Save(_ context.Context, id string, ym period.YearMonth) error {
	m.state[id] = ym
	return nil
}
func (m *memStore) Close() error { return nil }

func TestRegisterAndNew(t *testing.T) {
	Register("mem-test", func(_ context.Context, cfg Config) (Store, error) {
		return &memStore{cfg: cfg, state: State{}}, nil
	})

	s, err := New(context.Background(), Config{Kind: "mem-test", DSN: "x"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ms := s.(*memStore)
	if ms.cfg.Table != DefaultTable {
		t.Fatalf("Table = %q, want default %q", ms.cfg.Table, DefaultTable)
	}
	if !slices.Contains(Kinds(), "mem-test") {
		t.Fatalf("Kinds() = %v, missing mem-test", Kinds())
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate Register did not panic")
		}
	}()
	Register("mem-test", nil)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "floppy"})
	if err == nil || !strings.Contains(err.Error(), `unknown kind "floppy"`) {
		t.Fatalf("New(floppy) error = %v", err)
	}
}
