package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eksupdater/internal/config"
	"eksupdater/internal/datastore"
	"eksupdater/internal/textutil"
)

// SetupResult identifies what Setup created for one dataset.
type SetupResult struct {
	DatasetID  string
	PackageID  string
	ResourceID string
}

// Setup creates the CKAN dataset and the DataStore table of every dataset,
// using the current schema revision. The returned resource ids belong in the
// configuration as resource_id.
func (u *Updater) Setup(ctx context.Context, datasets []config.DatasetConfig) ([]SetupResult, error) {
	if u.provisioner == nil {
		return nil, errors.New("updater: setup needs a provisioner")
	}
	out := make([]SetupResult, 0, len(datasets))
	for _, d := range datasets {
		started := time.Now()
		res, err := u.setupDataset(ctx, d)
		u.metrics.Step(d.ID, "setup", err, time.Since(started))
		if err != nil {
			return out, fmt.Errorf("dataset %s: %w", d.ID, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (u *Updater) setupDataset(ctx context.Context, d config.DatasetConfig) (SetupResult, error) {
	sch, err := u.registry.Current(d.SchemaID())
	if err != nil {
		return SetupResult{}, err
	}
	logger := u.logger.With("dataset", d.ID, "schema", sch.String())

	title := d.Dataset.Title
	if title == "" {
		title = sch.Title
	}
	name := d.Dataset.Name
	if name == "" {
		name = textutil.Slug(title)
	}
	notes := d.Dataset.Notes
	if notes == "" {
		notes = sch.Description
	}

	pkgID, err := u.provisioner.CreateDataset(ctx, datastore.Dataset{
		Name:     name,
		Title:    title,
		Notes:    notes,
		OwnerOrg: d.Dataset.OwnerOrg,
	})
	if err != nil {
		return SetupResult{}, err
	}
	logger.Info("dataset created", "name", name, "package_id", pkgID)

	resID, err := u.provisioner.CreateTable(ctx, datastore.Resource{
		PackageID: pkgID,
		Name:      d.Resource.Name,
		Notes:     d.Resource.Notes,
	}, datastore.FieldsOf(sch), sch.PrimaryKey)
	if err != nil {
		return SetupResult{}, err
	}
	logger.Info("DataStore table created", "resource_id", resID, "fields", len(sch.Columns))

	return SetupResult{DatasetID: d.ID, PackageID: pkgID, ResourceID: resID}, nil
}
