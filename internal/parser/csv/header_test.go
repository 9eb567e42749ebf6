package csv

import (
	"errors"
	"testing"

	"eksupdater/internal/schema"
)

func zakazky(t *testing.T) *schema.Dataset {
	t.Helper()
	reg, err := schema.Load()
	if err != nil {
		t.Fatalf("schema.Load() error = %v", err)
	}
	d, err := reg.Current("zakazky")
	if err != nil {
		t.Fatalf("Current(zakazky) error = %v", err)
	}
	return d
}

// headerFor renders the header EKS writes for d: a BOM in the first cell and a
// trailing empty cell.
func headerFor(d *schema.Dataset) []string {
	h := make([]string, len(d.Columns)+1)
	for _, c := range d.Columns {
		h[c.Index] = c.ID
	}
	h[0] = utf8BOM + h[0]
	return h
}

func TestValidateHeaderAccepts(t *testing.T) {
	t.Parallel()

	d := zakazky(t)
	if err := ValidateHeader(headerFor(d), d); err != nil {
		t.Fatalf("ValidateHeader() error = %v", err)
	}

	quoted := headerFor(d)
	for i := range quoted[:len(quoted)-1] {
		quoted[i] = `"` + quoted[i] + `"`
	}
	if err := ValidateHeader(quoted, d); err != nil {
		t.Fatalf("ValidateHeader(quoted) error = %v", err)
	}
}

func TestValidateHeaderRejectsAnySingleMutation(t *testing.T) {
	t.Parallel()

	d := zakazky(t)
	for _, c := range d.Columns {
		h := headerFor(d)
		h[c.Index] = h[c.Index] + "X"

		err := ValidateHeader(h, d)
		var sve *SchemaValidationError
		if !errors.As(err, &sve) {
			t.Fatalf("mutating %s: error = %v, want *SchemaValidationError", c.ID, err)
		}
		if sve.Index != c.Index || sve.Expected != c.ID || sve.Found != c.ID+"X" {
			t.Fatalf("mutating %s: got %+v", c.ID, sve)
		}
	}
}

func TestValidateHeaderCaseSensitive(t *testing.T) {
	t.Parallel()

	d := zakazky(t)
	h := headerFor(d)
	h[5] = "objednavatelObchodneMeno"

	err := ValidateHeader(h, d)
	want := "header check failed: 'ObjednavatelObchodneMeno' expected in column 5, 'objednavatelObchodneMeno' found"
	if err == nil || err.Error() != want {
		t.Fatalf("ValidateHeader() error = %v, want %q", err, want)
	}
}

func TestValidateHeaderLength(t *testing.T) {
	t.Parallel()

	d := zakazky(t)
	tests := []struct {
		name   string
		header []string
		found  int
	}{
		{"missing trailing separator", headerFor(d)[:len(d.Columns)], 50},
		{"extra column", append(headerFor(d), "Extra"), 52},
		{"empty", nil, -1},
	}
	for _, tt := range tests {
		err := ValidateHeader(tt.header, d)
		var sve *SchemaValidationError
		if !errors.As(err, &sve) {
			t.Fatalf("%s: error = %v, want *SchemaValidationError", tt.name, err)
		}
		if sve.Index != -1 || sve.FoundCount != tt.found || sve.ExpectedCount != 51 {
			t.Fatalf("%s: got %+v", tt.name, sve)
		}
	}
}

func TestTrimHeaderCell(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{`"IdentifikatorZakazky"`, "IdentifikatorZakazky"},
		{utf8BOM + `"IdentifikatorZakazky"`, "IdentifikatorZakazky"},
		{utf8BOM + "IdentifikatorZakazky", "IdentifikatorZakazky"},
		{" Id ", " Id "},
	}
	for _, tt := range tests {
		if got := TrimHeaderCell(tt.in); got != tt.want {
			t.Fatalf("TrimHeaderCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
