package builtin

import (
	"errors"
	"time"

	"eksupdater/internal/schema"
	"eksupdater/pkg/records"
)

// Coerce rewrites the date, float and int fields of a record in place.
type Coerce struct {
	Dates    []string
	Floats   []string
	Ints     []string
	Location *time.Location
}

// CoerceFor builds the converter set for a schema revision.
func CoerceFor(d *schema.Dataset, loc *time.Location) Coerce {
	return Coerce{
		Dates:    d.DateFields,
		Floats:   d.FloatFields,
		Ints:     d.IntFields,
		Location: loc,
	}
}

// Apply converts every configured field of r. Fields absent from r are
// skipped. The first failure is returned as a *ConversionError carrying the
// field name and line.
func (c Coerce) Apply(line int, r records.Record) error {
	date := func(s string) (any, error) { return Date(s, c.Location) }
	groups := []struct {
		fields []string
		fn     func(string) (any, error)
	}{
		{c.Dates, date},
		{c.Floats, Float},
		{c.Ints, Int},
	}
	for _, g := range groups {
		for _, f := range g.fields {
			raw, ok := r[f].(string)
			if !ok {
				continue
			}
			v, err := g.fn(raw)
			if err != nil {
				var ce *ConversionError
				if errors.As(err, &ce) {
					ce.Field = f
					ce.Line = line
				}
				return err
			}
			r[f] = v
		}
	}
	return nil
}
