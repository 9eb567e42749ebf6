package updater

import (
	"context"
	"fmt"
	"path/filepath"

	"eksupdater/internal/config"
	"eksupdater/internal/period"
	"eksupdater/internal/schema"
)

// FileReport is the outcome of a dry run over one export file.
type FileReport struct {
	File       string
	Schema     string
	Period     period.YearMonth
	Records    int
	Duplicates int
}

// Verify runs the header check and every conversion over the export file
// name in the directory of d without uploading or checkpointing. The month
// and schema revision are taken from the file name.
func (u *Updater) Verify(ctx context.Context, d config.DatasetConfig, name string) (FileReport, error) {
	name = filepath.Base(name)
	revs := u.registry.Revisions(d.SchemaID())
	if len(revs) == 0 {
		return FileReport{}, &schema.UnknownSchemaError{ID: d.SchemaID()}
	}
	ym, ok := period.YearMonth{}, false
	for _, rev := range revs {
		if ym, ok = rev.ParseFileName(name); ok {
			break
		}
	}
	if !ok {
		return FileReport{}, fmt.Errorf("%s is not an export file of dataset %s", name, d.ID)
	}
	sch, err := u.registry.Lookup(d.SchemaID(), ym)
	if err != nil {
		return FileReport{}, err
	}

	r := &run{
		u:      u,
		cfg:    d,
		src:    u.sources(d.Directory),
		logger: u.logger.With("dataset", d.ID, "file", name),
		phase:  PhaseProcessingMonth,
		dryRun: true,
	}
	if r.loc, err = d.Location(); err != nil {
		return FileReport{}, err
	}

	rc, err := r.src.Open(ctx, name)
	if err != nil {
		return FileReport{}, err
	}
	defer rc.Close()

	n, dups, _, err := r.uploadFile(ctx, rc, sch, ym, name)
	rep := FileReport{File: name, Schema: sch.String(), Period: ym, Records: n, Duplicates: dups}
	return rep, err
}
