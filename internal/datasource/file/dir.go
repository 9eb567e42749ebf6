// Package file exposes the read-only directory holding the EKS exports.
package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"eksupdater/internal/period"
)

// NameParser extracts the month from an export file name.
// *schema.Dataset implements it.
type NameParser interface {
	ParseFileName(name string) (period.YearMonth, bool)
}

// NoFilesFoundError is returned when a directory holds no export file of the
// requested dataset.
type NoFilesFoundError struct {
	Dir string
}

func (e *NoFilesFoundError) Error() string {
	return fmt.Sprintf("no matching export files found in %s", e.Dir)
}

// Dir is a directory of monthly export files.
type Dir struct {
	root   string
	logger *slog.Logger
}

// NewDir returns a Dir rooted at root. A nil logger discards diagnostics.
func NewDir(root string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dir{root: root, logger: logger}
}

// Path joins name onto the directory.
func (d *Dir) Path(name string) string { return filepath.Join(d.root, name) }

// Open opens name for reading. A missing file yields an error satisfying
// errors.Is(err, fs.ErrNotExist); a canceled context is reported before the
// filesystem is touched.
func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := d.Path(name)
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}

// Oldest lists the regular files of the directory and returns the earliest
// month any parser recognizes. Symlinks are followed. Subdirectories and
// dangling links are ignored and unrecognized names are logged at debug
// level.
func (d *Dir) Oldest(ctx context.Context, parsers ...NameParser) (period.YearMonth, error) {
	if err := ctx.Err(); err != nil {
		return period.YearMonth{}, err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return period.YearMonth{}, fmt.Errorf("list %s: %w", d.root, err)
	}

	var (
		oldest period.YearMonth
		found  bool
	)
	for _, e := range entries {
		if !d.isRegular(e) {
			continue
		}
		ym, ok := parseAny(e.Name(), parsers)
		if !ok {
			d.logger.Debug("file does not match, skipping", "file", e.Name())
			continue
		}
		if !found || ym.Before(oldest) {
			oldest, found = ym, true
		}
	}
	if !found {
		return period.YearMonth{}, &NoFilesFoundError{Dir: d.root}
	}
	return oldest, nil
}

func (d *Dir) isRegular(e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}
	info, err := os.Stat(d.Path(e.Name()))
	if err != nil {
		d.logger.Debug("cannot follow link, skipping", "file", e.Name(), "error", err)
		return false
	}
	return info.Mode().IsRegular()
}

func parseAny(name string, parsers []NameParser) (period.YearMonth, bool) {
	for _, p := range parsers {
		if ym, ok := p.ParseFileName(name); ok {
			return ym, true
		}
	}
	return period.YearMonth{}, false
}
