package builtin

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"eksupdater/pkg/records"
)

// Duplicate describes a primary key seen more than once in one file.
type Duplicate struct {
	Key       string
	FirstLine int
	Line      int
}

// DupDetector remembers the primary key of every record of a file and
// reports repeats. Records are not dropped: the DataStore upsert keeps the
// last occurrence.
//
// Keys are stored as 128-bit xxh3 hashes so memory stays flat regardless of
// key length.
type DupDetector struct {
	keys []string
	seen map[xxh3.Uint128]int
}

// NewDupDetector returns a detector keyed by the given fields.
func NewDupDetector(keys []string) *DupDetector {
	return &DupDetector{keys: keys, seen: make(map[xxh3.Uint128]int)}
}

// Observe records r at line and returns the earlier occurrence, if any.
func (d *DupDetector) Observe(line int, r records.Record) (Duplicate, bool) {
	key := d.keyOf(r)
	h := xxh3.HashString128(key)
	if first, ok := d.seen[h]; ok {
		return Duplicate{Key: key, FirstLine: first, Line: line}, true
	}
	d.seen[h] = line
	return Duplicate{}, false
}

func (d *DupDetector) keyOf(r records.Record) string {
	if len(d.keys) == 1 {
		return stringify(r[d.keys[0]])
	}
	var b []byte
	for i, k := range d.keys {
		if i > 0 {
			b = append(b, '\x1f')
		}
		b = append(b, stringify(r[k])...)
	}
	return string(b)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00"
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
