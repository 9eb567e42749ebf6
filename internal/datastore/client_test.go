package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eksupdater/internal/schema"
	"eksupdater/pkg/records"
)

type captured struct {
	path    string
	headers http.Header
	body    map[string]any
}

// fakeCKAN answers every action with the configured status and body and
// records the requests it saw.
type fakeCKAN struct {
	mu     sync.Mutex
	status int
	reply  string
	calls  []captured
}

func (f *fakeCKAN) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(b, &body)

	f.mu.Lock()
	f.calls = append(f.calls, captured{path: r.URL.Path, headers: r.Header.Clone(), body: body})
	status, reply := f.status, f.reply
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (f *fakeCKAN) Calls() []captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]captured(nil), f.calls...)
}

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: srvURL + "/", APIKey: "secret-key", Timeout: 2 * time.Second})
	require.NoError(t, err)
	c.requestID = func() string { return "req-1" }
	return c
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"empty", "", true},
		{"no scheme", "data.example.org", true},
		{"ok", "https://data.example.org", false},
		{"trailing slash", "https://data.example.org/", false},
	}
	for _, tt := range tests {
		c, err := NewClient(Config{BaseURL: tt.url})
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, "https://data.example.org", c.baseURL)
		assert.Equal(t, defaultTimeout, c.httpClient.Timeout)

		tr, ok := c.httpClient.Transport.(*http.Transport)
		require.True(t, ok)
		assert.False(t, tr.TLSClientConfig.InsecureSkipVerify, "verification must be on by default")
	}
}

func TestCreateDataset(t *testing.T) {
	t.Parallel()

	fake := &fakeCKAN{reply: `{"success": true, "result": {"id": "pkg-123", "name": "eks-zakazky"}}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	id, err := newTestClient(t, srv.URL).CreateDataset(context.Background(), Dataset{
		Name:     "eks-zakazky",
		Title:    "EKS - Zakázky",
		OwnerOrg: "opendata_sk",
	})
	require.NoError(t, err)
	assert.Equal(t, "pkg-123", id)

	require.Len(t, fake.Calls(), 1)
	call := fake.Calls()[0]
	assert.Equal(t, "/api/action/package_create", call.path)
	assert.Equal(t, "secret-key", call.headers.Get("Authorization"))
	assert.Equal(t, "application/json", call.headers.Get("Content-Type"))
	assert.Equal(t, "req-1", call.headers.Get("X-Request-ID"))
	assert.Equal(t, "eks-zakazky", call.body["name"])
	assert.Equal(t, "opendata_sk", call.body["owner_org"])
	_, hasNotes := call.body["notes"]
	assert.False(t, hasNotes)
}

func TestCreateTable(t *testing.T) {
	t.Parallel()

	fake := &fakeCKAN{reply: `{"success": true, "result": {"resource_id": "res-9"}}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	d := &schema.Dataset{
		Columns: []schema.Column{
			{ID: "IdentifikatorZakazky", Type: schema.Text},
			{ID: "DatumVyhlasenia", Type: schema.Timestamp, Index: 1},
		},
	}
	id, err := newTestClient(t, srv.URL).CreateTable(context.Background(),
		Resource{PackageID: "pkg-123", Name: "Zakazky"},
		FieldsOf(d), []string{"IdentifikatorZakazky"})
	require.NoError(t, err)
	assert.Equal(t, "res-9", id)

	body := fake.Calls()[0].body
	assert.Equal(t, "/api/action/datastore_create", fake.Calls()[0].path)
	assert.Equal(t, map[string]any{"package_id": "pkg-123", "name": "Zakazky", "format": "csv"}, body["resource"])
	assert.Equal(t, []any{}, body["records"])
	assert.Equal(t, []any{"IdentifikatorZakazky"}, body["primary_key"])
	assert.Equal(t, []any{
		map[string]any{"id": "IdentifikatorZakazky", "type": "text"},
		map[string]any{"id": "DatumVyhlasenia", "type": "timestamp"},
	}, body["fields"])
}

func TestUpsert(t *testing.T) {
	t.Parallel()

	fake := &fakeCKAN{reply: `{"success": true, "result": {}}`}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	require.NoError(t, c.Upsert(context.Background(), "res-9", nil))
	assert.Empty(t, fake.Calls(), "empty batch must not hit the network")

	recs := []records.Record{
		{"IdentifikatorZakazky": "Z1", "VstupnaCena": 1.5, "DatumVyhlasenia": nil},
		{"IdentifikatorZakazky": "Z2", "VstupnaCena": nil, "DatumVyhlasenia": "2018-03-05T09:00:00"},
	}
	require.NoError(t, c.Upsert(context.Background(), "res-9", recs))

	require.Len(t, fake.Calls(), 1)
	body := fake.Calls()[0].body
	assert.Equal(t, "/api/action/datastore_upsert", fake.Calls()[0].path)
	assert.Equal(t, "res-9", body["resource_id"])
	assert.Equal(t, "upsert", body["method"])
	got := body["records"].([]any)
	require.Len(t, got, 2)
	assert.Equal(t, 1.5, got[0].(map[string]any)["VstupnaCena"])
	assert.Nil(t, got[0].(map[string]any)["DatumVyhlasenia"])
}

func TestFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		reply    string
		wantCode int
		wantBody string
	}{
		{
			name:     "http error keeps body",
			status:   http.StatusConflict,
			reply:    `{"success": false, "error": {"message": "duplicate key"}}`,
			wantCode: http.StatusConflict,
			wantBody: "duplicate key",
		},
		{
			name:     "server error with html body",
			status:   http.StatusInternalServerError,
			reply:    "<html>boom</html>",
			wantCode: http.StatusInternalServerError,
			wantBody: "boom",
		},
		{
			name:     "success false on 200",
			status:   http.StatusOK,
			reply:    `{"success": false, "error": {"__type": "Validation Error"}}`,
			wantCode: http.StatusOK,
			wantBody: "Validation Error",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(&fakeCKAN{status: tt.status, reply: tt.reply})
			defer srv.Close()

			err := newTestClient(t, srv.URL).Upsert(context.Background(), "r", []records.Record{{"a": "b"}})
			var rse *RemoteStoreError
			require.True(t, errors.As(err, &rse), "error = %v", err)
			assert.Equal(t, "datastore_upsert", rse.Action)
			assert.Equal(t, tt.wantCode, rse.StatusCode)
			assert.Equal(t, "req-1", rse.RequestID)
			assert.Contains(t, err.Error(), tt.wantBody)
		})
	}
}

func TestCreateDatasetMissingID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(&fakeCKAN{reply: `{"success": true, "result": {}}`})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).CreateDataset(context.Background(), Dataset{Name: "x"})
	var rse *RemoteStoreError
	require.True(t, errors.As(err, &rse))
	assert.Contains(t, err.Error(), "no id")
}

func TestUpsertToleratesNonJSONSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(&fakeCKAN{reply: "OK"})
	defer srv.Close()

	err := newTestClient(t, srv.URL).Upsert(context.Background(), "r", []records.Record{{"a": "b"}})
	assert.NoError(t, err)
}

func TestTLSVerification(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(&fakeCKAN{reply: `{"success": true}`})
	defer srv.Close()
	recs := []records.Record{{"a": "b"}}

	strict, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	err = strict.Upsert(context.Background(), "r", recs)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "certificate"), "error = %v", err)

	lax, err := NewClient(Config{BaseURL: srv.URL, InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.NoError(t, lax.Upsert(context.Background(), "r", recs))
}

func TestContextCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(&fakeCKAN{reply: `{"success": true}`})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newTestClient(t, srv.URL).Upsert(ctx, "r", []records.Record{{"a": "b"}})
	assert.ErrorIs(t, err, context.Canceled)
}
