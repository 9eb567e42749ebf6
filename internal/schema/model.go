// Package schema describes the column layout of every EKS export the updater
// understands.
//
// A Dataset is static data: the expected CSV header, the fields that need
// locale conversion and the primary key used for upserts. Several revisions of
// the same dataset may exist when EKS changes its file structure; the
// Registry selects the right one for a given month.
package schema

import (
	"fmt"
	"strings"

	"eksupdater/internal/period"
)

// PeriodPlaceholder is substituted with the YYYY-M month in file patterns.
const PeriodPlaceholder = "{period}"

// FieldType is the DataStore column type of a field.
type FieldType string

const (
	Text      FieldType = "text"
	Integer   FieldType = "integer"
	Float     FieldType = "float"
	Bool      FieldType = "bool"
	Timestamp FieldType = "timestamp"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case Text, Integer, Float, Bool, Timestamp:
		return true
	}
	return false
}

// Column is one field of a dataset and its position in the CSV row.
type Column struct {
	ID    string
	Type  FieldType
	Index int
}

// Dataset is a single revision of a dataset schema.
type Dataset struct {
	ID          string
	Revision    string
	Title       string
	Description string

	// FilePattern contains PeriodPlaceholder exactly once,
	// e.g. "ZoznamZakaziekReport_{period}_.csv".
	FilePattern string

	// ValidFrom is the first month this revision applies to. The zero value
	// means "since the beginning".
	ValidFrom period.YearMonth

	Columns     []Column
	DateFields  []string
	FloatFields []string
	IntFields   []string
	PrimaryKey  []string
}

// String identifies the revision in logs and errors.
func (d *Dataset) String() string {
	if d.Revision == "" {
		return d.ID
	}
	return d.ID + "@" + d.Revision
}

// FileName returns the export file name for ym.
func (d *Dataset) FileName(ym period.YearMonth) string {
	return strings.Replace(d.FilePattern, PeriodPlaceholder, ym.String(), 1)
}

// ParseFileName extracts the month from a file name matching FilePattern.
// Both "2018-3" and "2018-03" are accepted in the period slot.
func (d *Dataset) ParseFileName(name string) (period.YearMonth, bool) {
	prefix, suffix, ok := strings.Cut(d.FilePattern, PeriodPlaceholder)
	if !ok || len(name) <= len(prefix)+len(suffix) {
		return period.YearMonth{}, false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return period.YearMonth{}, false
	}
	ym, err := period.Parse(name[len(prefix) : len(name)-len(suffix)])
	if err != nil {
		return period.YearMonth{}, false
	}
	return ym, true
}

// Column returns the column with the given id.
func (d *Dataset) Column(id string) (Column, bool) {
	for _, c := range d.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// MaxIndex is the highest CSV index any column reads from.
func (d *Dataset) MaxIndex() int {
	max := -1
	for _, c := range d.Columns {
		if c.Index > max {
			max = c.Index
		}
	}
	return max
}

// Validate checks the structural invariants of a revision.
func (d *Dataset) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("schema: dataset id must not be empty")
	}
	if n := strings.Count(d.FilePattern, PeriodPlaceholder); n != 1 {
		return fmt.Errorf("schema %s: file_pattern must contain %s exactly once, found %d", d, PeriodPlaceholder, n)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("schema %s: no columns", d)
	}

	ids := make(map[string]struct{}, len(d.Columns))
	indexes := make(map[int]struct{}, len(d.Columns))
	for _, c := range d.Columns {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("schema %s: column at index %d has no id", d, c.Index)
		}
		if !c.Type.Valid() {
			return fmt.Errorf("schema %s: column %s has unknown type %q", d, c.ID, c.Type)
		}
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("schema %s: duplicate column id %s", d, c.ID)
		}
		if _, dup := indexes[c.Index]; dup {
			return fmt.Errorf("schema %s: duplicate column index %d (%s)", d, c.Index, c.ID)
		}
		ids[c.ID] = struct{}{}
		indexes[c.Index] = struct{}{}
	}
	for i := range d.Columns {
		if _, ok := indexes[i]; !ok {
			return fmt.Errorf("schema %s: column indexes are not contiguous, %d is missing", d, i)
		}
	}

	lists := []struct {
		name   string
		fields []string
	}{
		{"date_fields", d.DateFields},
		{"float_fields", d.FloatFields},
		{"int_fields", d.IntFields},
		{"primary_key", d.PrimaryKey},
	}
	for _, l := range lists {
		for _, f := range l.fields {
			if _, ok := ids[f]; !ok {
				return fmt.Errorf("schema %s: %s names unknown field %s", d, l.name, f)
			}
		}
	}
	if len(d.PrimaryKey) == 0 {
		return fmt.Errorf("schema %s: primary_key must not be empty", d)
	}
	return nil
}
