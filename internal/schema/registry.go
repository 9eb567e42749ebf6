package schema

import (
	"fmt"
	"sort"

	"eksupdater/internal/period"
)

// UnknownSchemaError is returned when no revision applies to a lookup.
type UnknownSchemaError struct {
	ID     string
	Period period.YearMonth
}

func (e *UnknownSchemaError) Error() string {
	if e.Period.IsZero() {
		return fmt.Sprintf("schema: unknown dataset %q", e.ID)
	}
	return fmt.Sprintf("schema: no revision of %q applies to %s", e.ID, e.Period)
}

// Registry holds every known revision keyed by dataset id. It is immutable
// after NewRegistry returns and safe for concurrent reads.
type Registry struct {
	// revisions are sorted by ValidFrom ascending.
	revisions map[string][]*Dataset
}

// NewRegistry validates the given revisions and indexes them.
func NewRegistry(datasets ...*Dataset) (*Registry, error) {
	r := &Registry{revisions: make(map[string][]*Dataset)}
	for _, d := range datasets {
		if d == nil {
			continue
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		for _, prev := range r.revisions[d.ID] {
			if prev.ValidFrom == d.ValidFrom {
				return nil, fmt.Errorf("schema: %s and %s both start at %q", prev, d, d.ValidFrom)
			}
		}
		r.revisions[d.ID] = append(r.revisions[d.ID], d)
	}
	for _, revs := range r.revisions {
		sort.Slice(revs, func(i, j int) bool {
			return revs[i].ValidFrom.Before(revs[j].ValidFrom)
		})
	}
	return r, nil
}

// Lookup returns the latest revision of id whose ValidFrom is not after ym.
func (r *Registry) Lookup(id string, ym period.YearMonth) (*Dataset, error) {
	revs := r.revisions[id]
	if len(revs) == 0 {
		return nil, &UnknownSchemaError{ID: id}
	}
	for i := len(revs) - 1; i >= 0; i-- {
		if !ym.Before(revs[i].ValidFrom) {
			return revs[i], nil
		}
	}
	return nil, &UnknownSchemaError{ID: id, Period: ym}
}

// Current returns the newest revision of id, used when creating the remote
// table.
func (r *Registry) Current(id string) (*Dataset, error) {
	revs := r.revisions[id]
	if len(revs) == 0 {
		return nil, &UnknownSchemaError{ID: id}
	}
	return revs[len(revs)-1], nil
}

// Revisions returns every revision of id, oldest first.
func (r *Registry) Revisions(id string) []*Dataset {
	return append([]*Dataset(nil), r.revisions[id]...)
}

// IDs lists the known dataset ids in lexical order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.revisions))
	for id := range r.revisions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
