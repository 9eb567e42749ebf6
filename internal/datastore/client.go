// Package datastore is a small client for the CKAN action API, limited to the
// calls the updater needs: creating a dataset, creating a DataStore table and
// upserting records into it.
//
// Every call is a JSON POST to {base}/api/action/{action}. The API key is
// sent verbatim in the Authorization header, as CKAN expects. A call succeeds
// only with HTTP 200 and, when the body carries it, "success": true; anything
// else is a *RemoteStoreError holding the response body.
//
// There is no retry. A failed call is reported to the caller, which aborts
// the run; the checkpoint of the month being processed is not written, so
// the next run repeats it.
package datastore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "eksupdater"

	// maxErrorBody caps how much of a failed response is kept in errors.
	maxErrorBody = 64 << 10
)

// Config configures a Client.
type Config struct {
	// BaseURL is the CKAN site, e.g. "https://data.example.org".
	BaseURL string

	// APIKey is sent unchanged in the Authorization header.
	APIKey string

	// Timeout bounds each request. Zero means 60s.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification. Only for
	// instances with self-signed certificates.
	InsecureSkipVerify bool

	UserAgent string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client talks to one CKAN instance. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string

	// requestID is injectable so tests can assert on the header.
	requestID func() string
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("datastore: base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("datastore: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in
		}
		transport = t
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		baseURL:    base,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		requestID:  uuid.NewString,
	}, nil
}

// envelope is the common shape of CKAN action responses.
type envelope struct {
	Success *bool           `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// call POSTs payload to the action and decodes the "result" member into out
// when out is non-nil.
func (c *Client) call(ctx context.Context, action string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("datastore: %s: encode request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/action/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("datastore: %s: build request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
	reqID := c.requestID()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("datastore: %s: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("datastore: %s: read response: %w", action, err)
	}

	fail := func(cause error) error {
		return &RemoteStoreError{
			Action:     action,
			StatusCode: resp.StatusCode,
			Body:       truncate(raw),
			RequestID:  reqID,
			Err:        cause,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return fail(nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if out == nil {
			return nil
		}
		return fail(err)
	}
	if env.Success != nil && !*env.Success {
		return fail(nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fail(err)
	}
	return nil
}

func truncate(b []byte) string {
	if len(b) <= maxErrorBody {
		return string(b)
	}
	return string(b[:maxErrorBody]) + "...(truncated)"
}
