package mssql

import (
	"context"
	"strings"
	"testing"
)

func TestDialectStatements(t *testing.T) {
	t.Parallel()

	create := Dialect.CreateTable("dbo.resumption_state")
	if !strings.Contains(create, "OBJECT_ID(N'dbo.resumption_state', N'U') IS NULL") {
		t.Fatalf("CreateTable lacks existence guard:\n%s", create)
	}

	upsert := Dialect.Upsert("dbo.resumption_state")
	for _, want := range []string{"MERGE dbo.resumption_state WITH (HOLDLOCK)", "@p1", "@p2", "@p3", "WHEN NOT MATCHED THEN"} {
		if !strings.Contains(upsert, want) {
			t.Fatalf("Upsert missing %q:\n%s", want, upsert)
		}
	}
	if !strings.HasSuffix(upsert, ";") {
		t.Fatalf("MERGE must be terminated with a semicolon")
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "sqlserver://%zz", "resumption_state"); err == nil {
		t.Fatalf("Open(bad dsn) error = nil, want non-nil")
	}
}
