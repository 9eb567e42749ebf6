package updater

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"

	"eksupdater/internal/datasource/file"
	"eksupdater/internal/datastore"
	"eksupdater/internal/notify"
	"eksupdater/internal/notify/rabbitmq"
	"eksupdater/internal/period"
	"eksupdater/internal/storage"
	"eksupdater/pkg/records"
)

// Uploader sends one batch of records to a DataStore resource.
type Uploader interface {
	Upsert(ctx context.Context, resourceID string, recs []records.Record) error
}

// Provisioner creates the CKAN dataset and DataStore table of a dataset.
type Provisioner interface {
	CreateDataset(ctx context.Context, ds datastore.Dataset) (string, error)
	CreateTable(ctx context.Context, res datastore.Resource, fields []datastore.Field, primaryKey []string) (string, error)
}

// Source is the directory of monthly export files of one dataset.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Oldest(ctx context.Context, parsers ...file.NameParser) (period.YearMonth, error)
}

// StateStore persists the last processed month per dataset.
type StateStore interface {
	Load(ctx context.Context) (storage.State, error)
	Save(ctx context.Context, datasetID string, ym period.YearMonth) error
}

// Publisher announces a month that has been uploaded and checkpointed.
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event) error
}

var (
	_ Uploader    = (*datastore.Client)(nil)
	_ Provisioner = (*datastore.Client)(nil)
	_ Source      = (*file.Dir)(nil)
	_ StateStore  = (storage.Store)(nil)
	_ Publisher   = (*rabbitmq.Publisher)(nil)
)
