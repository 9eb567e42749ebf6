package schema

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"eksupdater/internal/period"
)

//go:embed tables/*.yaml
var builtinTables embed.FS

// tableFile is the on-disk YAML shape of a Dataset.
type tableFile struct {
	ID          string           `yaml:"id"`
	Revision    string           `yaml:"revision"`
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	FilePattern string           `yaml:"file_pattern"`
	ValidFrom   period.YearMonth `yaml:"valid_from"`
	PrimaryKey  []string         `yaml:"primary_key"`
	Columns     []struct {
		ID    string    `yaml:"id"`
		Type  FieldType `yaml:"type"`
		Index *int      `yaml:"index"`
	} `yaml:"columns"`
	DateFields  []string `yaml:"date_fields"`
	FloatFields []string `yaml:"float_fields"`
	IntFields   []string `yaml:"int_fields"`
}

// Parse decodes a single YAML table. Columns without an explicit index take
// their list position; type defaults to text. When a conversion list is
// omitted it is derived from the column types.
func Parse(data []byte) (*Dataset, error) {
	var tf tableFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}

	d := &Dataset{
		ID:          strings.TrimSpace(tf.ID),
		Revision:    tf.Revision,
		Title:       tf.Title,
		Description: tf.Description,
		FilePattern: tf.FilePattern,
		ValidFrom:   tf.ValidFrom,
		PrimaryKey:  tf.PrimaryKey,
		DateFields:  tf.DateFields,
		FloatFields: tf.FloatFields,
		IntFields:   tf.IntFields,
	}
	for i, c := range tf.Columns {
		col := Column{ID: c.ID, Type: c.Type, Index: i}
		if c.Index != nil {
			col.Index = *c.Index
		}
		if col.Type == "" {
			col.Type = Text
		}
		d.Columns = append(d.Columns, col)
	}
	if d.DateFields == nil {
		d.DateFields = d.fieldsOfType(Timestamp)
	}
	if d.FloatFields == nil {
		d.FloatFields = d.fieldsOfType(Float)
	}
	if d.IntFields == nil {
		d.IntFields = d.fieldsOfType(Integer)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dataset) fieldsOfType(t FieldType) []string {
	var out []string
	for _, c := range d.Columns {
		if c.Type == t {
			out = append(out, c.ID)
		}
	}
	return out
}

// LoadFS reads every *.yaml and *.yml file in dir of fsys.
func LoadFS(fsys fs.FS, dir string) ([]*Dataset, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := path.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*Dataset, 0, len(names))
	for _, name := range names {
		p := path.Join(dir, name)
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", p, err)
		}
		d, err := Parse(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Builtin returns the tables compiled into the binary.
func Builtin() ([]*Dataset, error) {
	return LoadFS(builtinTables, "tables")
}

// Load builds a registry from the builtin tables plus every directory in
// dirs. Directory tables may add datasets or revisions but may not redefine
// an existing (id, valid_from) pair.
func Load(dirs ...string) (*Registry, error) {
	all, err := Builtin()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		ds, err := LoadFS(os.DirFS(dir), ".")
		if err != nil {
			return nil, fmt.Errorf("schema dir %s: %w", dir, err)
		}
		all = append(all, ds...)
	}
	return NewRegistry(all...)
}
