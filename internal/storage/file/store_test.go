package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eksupdater/internal/period"
	"eksupdater/internal/storage"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "state.json"))
	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st)
}

func TestSaveThenLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s := New(path)
	s.now = func() time.Time { return time.Date(2018, 4, 2, 6, 0, 0, 0, time.UTC) }
	require.NoError(t, s.Save(ctx, "zakazky", period.MustParse("2018-3")))
	require.NoError(t, s.Save(ctx, "zmluvy", period.MustParse("2018-1")))
	require.NoError(t, s.Save(ctx, "zakazky", period.MustParse("2018-4")))

	st, err := New(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.State{
		"zakazky": period.MustParse("2018-4"),
		"zmluvy":  period.MustParse("2018-1"),
	}, st)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, float64(1), doc["version"])
	assert.Equal(t, "2018-04-02T06:00:00Z", doc["updated_at"])
	assert.Equal(t, map[string]any{"zakazky": "2018-4", "zmluvy": "2018-1"}, doc["datasets"])

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".state.json.*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSavePreservesOtherDatasetsWithoutLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()
	require.NoError(t, New(path).Save(ctx, "zmluvy", period.MustParse("2017-12")))

	require.NoError(t, New(path).Save(ctx, "zakazky", period.MustParse("2018-3")))

	st, err := New(path).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, st, 2)
}

func TestLoadReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "zakazky", period.MustParse("2018-3")))

	st, err := s.Load(ctx)
	require.NoError(t, err)
	st["zakazky"] = period.MustParse("2030-1")

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2018-3", again["zakazky"].String())
}

func TestLoadRejectsCorruptAndUnknownVersion(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"garbage": "not json",
		"version": `{"version": 7, "datasets": {}}`,
		"month":   `{"version": 1, "datasets": {"zakazky": "2018-13"}}`,
	}
	for name, content := range tests {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := New(path).Load(context.Background())
		assert.Error(t, err, name)
	}
}

func TestRegisteredAsFileKind(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "s.json")
	s, err := storage.New(context.Background(), storage.Config{Kind: "file", DSN: path})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.(*Store).Path())
}
