// Package builtin contains the field converters and record checks applied to
// every EKS row before upload.
//
// EKS exports use Slovak locale conventions: dates as "5.3.2018 9:00:00",
// decimals with a comma and integers occasionally wrapped in single quotes.
// The converters turn those into JSON-ready values; empty input always
// converts to nil.
package builtin

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout accepts non-padded day, month and hour, as EKS writes them.
	DateLayout = "2.1.2006 15:04:05"

	// isoLayout is used when no time zone is configured.
	isoLayout = "2006-01-02T15:04:05"
)

// ConversionError reports a value that could not be converted.
type ConversionError struct {
	Field string
	Value string
	Kind  string // "timestamp", "float"
	Line  int    // 1-based CSV line, 0 when unknown
	Err   error
}

func (e *ConversionError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "field %s: ", e.Field)
	}
	fmt.Fprintf(&b, "cannot convert %q to %s", e.Value, e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Date converts an EKS timestamp to ISO-8601.
//
// With a nil loc the result carries no offset ("2018-03-05T09:00:00").
// Otherwise the text is interpreted in loc and rendered as RFC 3339.
func Date(text string, loc *time.Location) (any, error) {
	if text == "" {
		return nil, nil
	}
	s := strings.TrimSpace(text)
	if loc == nil {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, &ConversionError{Value: text, Kind: "timestamp", Err: err}
		}
		return t.Format(isoLayout), nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return nil, &ConversionError{Value: text, Kind: "timestamp", Err: err}
	}
	return t.Format(time.RFC3339), nil
}

// Float converts a comma-decimal number, e.g. "1,0000" to 1.0.
func Float(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &ConversionError{Value: text, Kind: "float", Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &ConversionError{Value: text, Kind: "float", Err: fmt.Errorf("not a finite number")}
	}
	return f, nil
}

// Int strips the single quotes EKS sometimes wraps integers in. The value
// stays a string; the DataStore casts it to the column's integer type.
func Int(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	return strings.Trim(text, "'"), nil
}
