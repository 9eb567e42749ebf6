package datastore

import (
	"context"
	"errors"
	"net/http"

	"eksupdater/internal/schema"
	"eksupdater/pkg/records"
)

// Dataset is the metadata of a CKAN package.
type Dataset struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	OwnerOrg string `json:"owner_org,omitempty"`
}

// Resource describes the DataStore resource created inside a package.
type Resource struct {
	PackageID string `json:"package_id"`
	Name      string `json:"name"`
	Format    string `json:"format"`
	Notes     string `json:"notes,omitempty"`
}

// Field is a DataStore column definition.
type Field struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// FieldsOf lists the columns of d in CSV order.
func FieldsOf(d *schema.Dataset) []Field {
	out := make([]Field, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = Field{ID: c.ID, Type: string(c.Type)}
	}
	return out
}

// CreateDataset calls package_create and returns the new package id.
func (c *Client) CreateDataset(ctx context.Context, ds Dataset) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, "package_create", ds, &res); err != nil {
		return "", err
	}
	if res.ID == "" {
		return "", &RemoteStoreError{Action: "package_create", StatusCode: http.StatusOK, Err: errors.New("response carries no id")}
	}
	return res.ID, nil
}

// CreateTable calls datastore_create with no records, creating an empty
// table in a new resource of the package, and returns the resource id.
// Format defaults to "csv".
func (c *Client) CreateTable(ctx context.Context, res Resource, fields []Field, primaryKey []string) (string, error) {
	if res.Format == "" {
		res.Format = "csv"
	}
	payload := struct {
		Resource   Resource         `json:"resource"`
		Records    []records.Record `json:"records"`
		Fields     []Field          `json:"fields"`
		PrimaryKey []string         `json:"primary_key"`
	}{
		Resource:   res,
		Records:    []records.Record{},
		Fields:     fields,
		PrimaryKey: primaryKey,
	}
	var out struct {
		ResourceID string `json:"resource_id"`
	}
	if err := c.call(ctx, "datastore_create", payload, &out); err != nil {
		return "", err
	}
	if out.ResourceID == "" {
		return "", &RemoteStoreError{Action: "datastore_create", StatusCode: http.StatusOK, Err: errors.New("response carries no resource_id")}
	}
	return out.ResourceID, nil
}

// Upsert inserts or replaces recs by primary key. An empty batch is a no-op.
func (c *Client) Upsert(ctx context.Context, resourceID string, recs []records.Record) error {
	if len(recs) == 0 {
		return nil
	}
	payload := struct {
		ResourceID string           `json:"resource_id"`
		Method     string           `json:"method"`
		Records    []records.Record `json:"records"`
	}{resourceID, "upsert", recs}
	return c.call(ctx, "datastore_upsert", payload, nil)
}
