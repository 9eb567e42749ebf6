// Package transformer maps raw CSV rows of a validated file into records.
package transformer

import (
	"fmt"
	"time"

	"eksupdater/internal/schema"
	"eksupdater/internal/transformer/builtin"
	"eksupdater/pkg/records"
)

// ShortRowError is returned for a row with fewer cells than the schema reads.
type ShortRowError struct {
	Line int
	Got  int
	Need int
}

func (e *ShortRowError) Error() string {
	return fmt.Sprintf("line %d: row has %d cells, schema reads up to index %d", e.Line, e.Got, e.Need-1)
}

// Mapper converts rows of one schema revision. It keeps no per-row state;
// every call returns a fresh record.
type Mapper struct {
	columns []schema.Column
	coerce  builtin.Coerce
	need    int
}

// NewMapper prepares a mapper for d. loc selects the time zone for
// timestamp fields; nil leaves them without offset.
func NewMapper(d *schema.Dataset, loc *time.Location) *Mapper {
	return &Mapper{
		columns: d.Columns,
		coerce:  builtin.CoerceFor(d, loc),
		need:    d.MaxIndex() + 1,
	}
}

// Map copies the text of every column into a record by field id and then
// applies the date, float and int converters.
func (m *Mapper) Map(line int, row []string) (records.Record, error) {
	if len(row) < m.need {
		return nil, &ShortRowError{Line: line, Got: len(row), Need: m.need}
	}
	rec := make(records.Record, len(m.columns))
	for _, c := range m.columns {
		rec[c.ID] = row[c.Index]
	}
	if err := m.coerce.Apply(line, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
