package file

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"eksupdater/internal/schema"
)

var zakazkyNames = &schema.Dataset{FilePattern: "ZoznamZakaziekReport_{period}_.csv"}

func touch(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirOldest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   []string
		dirs    []string
		want    string
		wantErr bool
	}{
		{
			name:  "single file",
			files: []string{"ZoznamZakaziekReport_2018-3_.csv"},
			want:  "2018-3",
		},
		{
			name: "ordering is by month not by name",
			files: []string{
				"ZoznamZakaziekReport_2018-10_.csv",
				"ZoznamZakaziekReport_2018-9_.csv",
				"ZoznamZakaziekReport_2019-1_.csv",
			},
			want: "2018-9",
		},
		{
			name:  "padded months are accepted",
			files: []string{"ZoznamZakaziekReport_2018-04_.csv", "ZoznamZakaziekReport_2018-5_.csv"},
			want:  "2018-4",
		},
		{
			name:  "unrelated files are skipped",
			files: []string{"README.txt", "ZoznamZmluvReport_2017-1_.csv", "ZoznamZakaziekReport_2018-6_.csv"},
			want:  "2018-6",
		},
		{
			name:  "directories are ignored",
			files: []string{"ZoznamZakaziekReport_2018-6_.csv"},
			dirs:  []string{"ZoznamZakaziekReport_2017-1_.csv"},
			want:  "2018-6",
		},
		{
			name:    "no match",
			files:   []string{"README.txt"},
			wantErr: true,
		},
		{
			name:    "empty",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			for _, f := range tt.files {
				touch(t, root, f, "")
			}
			for _, d := range tt.dirs {
				if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
			}

			got, err := NewDir(root, nil).Oldest(context.Background(), zakazkyNames)
			if tt.wantErr {
				var nf *NoFilesFoundError
				if !errors.As(err, &nf) {
					t.Fatalf("Oldest() error = %v, want *NoFilesFoundError", err)
				}
				if nf.Dir != root {
					t.Fatalf("NoFilesFoundError.Dir = %q, want %q", nf.Dir, root)
				}
				return
			}
			if err != nil {
				t.Fatalf("Oldest() error = %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("Oldest() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDirOldestFollowsSymlinks(t *testing.T) {
	t.Parallel()

	root, elsewhere := t.TempDir(), t.TempDir()
	touch(t, elsewhere, "export.csv", "")
	if err := os.Mkdir(filepath.Join(elsewhere, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	links := map[string]string{
		"ZoznamZakaziekReport_2018-7_.csv": filepath.Join(elsewhere, "export.csv"),
		"ZoznamZakaziekReport_2017-1_.csv": filepath.Join(elsewhere, "sub"),
		"ZoznamZakaziekReport_2016-1_.csv": filepath.Join(elsewhere, "gone.csv"),
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(root, name)); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
	}
	touch(t, root, "ZoznamZakaziekReport_2018-9_.csv", "")

	got, err := NewDir(root, nil).Oldest(context.Background(), zakazkyNames)
	if err != nil {
		t.Fatalf("Oldest() error = %v", err)
	}
	if got.String() != "2018-7" {
		t.Fatalf("Oldest() = %s, want 2018-7", got)
	}
}

func TestDirOldestMissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewDir(filepath.Join(t.TempDir(), "gone"), nil).Oldest(context.Background(), zakazkyNames)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Oldest() error = %v, want fs.ErrNotExist", err)
	}
}

func TestDirOpen(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root, "a.csv", "hello")
	d := NewDir(root, nil)

	rc, err := d.Open(context.Background(), "a.csv")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	b, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(b) != "hello" {
		t.Fatalf("ReadAll = %q, %v", b, err)
	}

	if _, err := d.Open(context.Background(), "missing.csv"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Open(missing) error = %v, want fs.ErrNotExist", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Open(ctx, "a.csv"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Open(canceled) error = %v, want context.Canceled", err)
	}
}
