package updater

import (
	"fmt"
	"time"

	"eksupdater/internal/period"
)

// DatasetSummary reports one dataset of an update run.
type DatasetSummary struct {
	ID string

	// Start is the first month looked at; Last the last one uploaded. Last
	// is zero when no file was processed.
	Start period.YearMonth
	Last  period.YearMonth

	Files      int
	Records    int
	Batches    int
	Duplicates int
	Elapsed    time.Duration
}

// Message is the operator line printed after a dataset finishes.
func (s DatasetSummary) Message() string {
	if s.Files == 1 {
		return "1 file processed."
	}
	return fmt.Sprintf("%d files processed.", s.Files)
}

// Summary reports an update run, in configuration order.
type Summary struct {
	Datasets []DatasetSummary
}

// Files is the total over all datasets.
func (s Summary) Files() int {
	n := 0
	for _, d := range s.Datasets {
		n += d.Files
	}
	return n
}

// Records is the total over all datasets.
func (s Summary) Records() int {
	n := 0
	for _, d := range s.Datasets {
		n += d.Records
	}
	return n
}
