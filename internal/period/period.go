// Package period models the calendar month an EKS export file covers.
//
// EKS names its monthly reports with a non-padded month, e.g.
// "ZoznamZakaziekReport_2018-3_.csv". YearMonth.String renders that form
// and Parse accepts both the padded and non-padded variants.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// YearMonth identifies a single calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Parse parses "YYYY-M" or "YYYY-MM".
func Parse(s string) (YearMonth, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || len(y) != 4 || len(m) < 1 || len(m) > 2 {
		return YearMonth{}, fmt.Errorf("period: invalid year-month %q", s)
	}
	year, err := strconv.Atoi(y)
	if err != nil || year < 1 {
		return YearMonth{}, fmt.Errorf("period: invalid year in %q", s)
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return YearMonth{}, fmt.Errorf("period: invalid month in %q", s)
	}
	return YearMonth{Year: year, Month: time.Month(month)}, nil
}

// MustParse is Parse for constants in tests and tables; it panics on error.
func MustParse(s string) YearMonth {
	ym, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ym
}

// String renders the canonical non-padded form, e.g. "2018-3".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%d-%d", ym.Year, int(ym.Month))
}

// IsZero reports whether ym is the zero value.
func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

// Next returns the following calendar month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == time.December {
		return YearMonth{Year: ym.Year + 1, Month: time.January}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// Compare returns -1, 0 or +1 depending on whether ym is before, equal to or
// after other.
func (ym YearMonth) Compare(other YearMonth) int {
	switch {
	case ym.Year < other.Year:
		return -1
	case ym.Year > other.Year:
		return 1
	case ym.Month < other.Month:
		return -1
	case ym.Month > other.Month:
		return 1
	}
	return 0
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool { return ym.Compare(other) < 0 }

// MarshalText implements encoding.TextMarshaler, so YearMonth values can be
// used directly in JSON and YAML documents.
func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ym *YearMonth) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*ym = v
	return nil
}
