// Package records defines the record shape shared by the mapper, the
// converters and the DataStore client.
package records

// Record maps a field id to its JSON-ready value: string, float64, bool, an
// ISO-8601 timestamp string, or nil.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
