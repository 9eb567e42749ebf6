// Package csv reads EKS export files.
//
// Reader wraps encoding/csv with the settings EKS output needs: lazy quotes,
// a variable number of fields per row and optional decoding of legacy
// single-byte encodings. Rows are returned one at a time so memory stays
// bounded by the largest row.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"eksupdater/internal/schema"
)

// Options tune a Reader. The zero value reads comma-separated UTF-8.
type Options struct {
	// Encoding is a WHATWG encoding label such as "windows-1250". Empty or
	// "utf-8" leaves the input untouched.
	Encoding string
}

// Reader yields the rows of one export file together with their line numbers.
type Reader struct {
	cr *csv.Reader
}

// NewReader wraps r according to opt.
func NewReader(r io.Reader, opt Options) (*Reader, error) {
	if enc := strings.TrimSpace(opt.Encoding); enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, fmt.Errorf("csv: unknown encoding %q: %w", opt.Encoding, err)
		}
		r = transform.NewReader(r, e.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return &Reader{cr: cr}, nil
}

func isUTF8(label string) bool {
	return strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8")
}

// Next returns the next row and the line it starts on. It returns io.EOF
// after the last row.
func (r *Reader) Next() (int, []string, error) {
	row, err := r.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("csv: %w", err)
	}
	line, _ := r.cr.FieldPos(0)
	return line, row, nil
}

// ReadHeader reads the first row and validates it against d. An empty file
// fails validation with a zero found count.
func (r *Reader) ReadHeader(d *schema.Dataset) error {
	_, header, err := r.Next()
	if errors.Is(err, io.EOF) {
		return &SchemaValidationError{Index: -1, ExpectedCount: len(d.Columns), FoundCount: 0}
	}
	if err != nil {
		return err
	}
	return ValidateHeader(header, d)
}
