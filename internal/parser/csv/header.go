package csv

import (
	"fmt"

	"eksupdater/internal/schema"
)

// SchemaValidationError reports a header that does not match the schema.
// Either the cell counts differ (Index is -1) or the cell at Index holds
// Found instead of Expected.
type SchemaValidationError struct {
	File  string
	Index int

	Expected string
	Found    string

	ExpectedCount int
	FoundCount    int
}

func (e *SchemaValidationError) Error() string {
	prefix := "header check failed"
	if e.File != "" {
		prefix = e.File + ": " + prefix
	}
	if e.Index < 0 {
		return fmt.Sprintf("%s: %d items in header found, %d expected", prefix, e.FoundCount, e.ExpectedCount)
	}
	return fmt.Sprintf("%s: '%s' expected in column %d, '%s' found", prefix, e.Expected, e.Index, e.Found)
}

// ValidateHeader checks a raw header row against d.
//
// EKS terminates every row with a separator, so the header carries one
// trailing empty cell that is not counted. Each cell is compared after
// trimming quotes and a byte-order mark; the comparison is case-sensitive.
func ValidateHeader(header []string, d *schema.Dataset) error {
	effective := len(header) - 1
	if effective != len(d.Columns) {
		return &SchemaValidationError{
			Index:         -1,
			ExpectedCount: len(d.Columns),
			FoundCount:    effective,
		}
	}
	for _, c := range d.Columns {
		found := TrimHeaderCell(header[c.Index])
		if found != c.ID {
			return &SchemaValidationError{
				Index:    c.Index,
				Expected: c.ID,
				Found:    found,
			}
		}
	}
	return nil
}
