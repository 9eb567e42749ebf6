package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/encoding/htmlindex"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the command.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single finding. Path is a dotted path into the document, e.g.
// "datasets[0].resource_id".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ConfigurationError carries the blocking issues of a configuration.
type ConfigurationError struct {
	Issues []Issue
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, iss := range e.Issues {
		msgs[i] = iss.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual issues to errors.Is and errors.As.
func (e *ConfigurationError) Unwrap() []error {
	out := make([]error, len(e.Issues))
	for i, iss := range e.Issues {
		out[i] = iss
	}
	return out
}

// Check returns a *ConfigurationError holding the error-severity issues, or
// nil when there are none.
func Check(issues []Issue) error {
	var blocking []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			blocking = append(blocking, iss)
		}
	}
	if len(blocking) == 0 {
		return nil
	}
	return &ConfigurationError{Issues: blocking}
}

// Warnings filters issues down to warnings.
func Warnings(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityWarning {
			out = append(out, iss)
		}
	}
	return out
}

// ValidateForUpdate checks what the update and schedule commands need.
func ValidateForUpdate(c *Config) []Issue {
	issues := validateCommon(c)
	if c.BatchSize < 1 {
		issues = append(issues, errorf("batch_size", "batch_size must be positive, got %d", c.BatchSize))
	}
	issues = append(issues, validateState(c.State)...)
	issues = append(issues, validateNotify(c.Notify)...)
	issues = append(issues, validateSources(c)...)
	for i, d := range c.Datasets {
		if strings.TrimSpace(d.ResourceID) == "" {
			issues = append(issues, errorf(fmt.Sprintf("datasets[%d].resource_id", i), "resource_id must not be empty; run setup to create the resource"))
		}
	}
	return issues
}

// ValidateForCheck checks what the offline check command needs. The
// DataStore and state sections are not used.
func ValidateForCheck(c *Config) []Issue {
	return append(validateBase(c), validateSources(c)...)
}

// ValidateForSchedule adds the cron expression and timezone checks to
// ValidateForUpdate.
func ValidateForSchedule(c *Config) []Issue {
	issues := ValidateForUpdate(c)
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		issues = append(issues, errorf("schedule", "invalid cron expression %q: %v", c.Schedule, err))
	}
	if _, err := c.ScheduleLocation(); err != nil {
		issues = append(issues, errorf("schedule_timezone", "%v", err))
	}
	return issues
}

// ValidateForSetup checks what the setup command needs.
func ValidateForSetup(c *Config) []Issue {
	issues := validateCommon(c)
	for i, d := range c.Datasets {
		p := fmt.Sprintf("datasets[%d]", i)
		if strings.TrimSpace(d.Dataset.OwnerOrg) == "" {
			issues = append(issues, errorf(p+".dataset.owner_org", "owner_org must not be empty"))
		}
		if d.ResourceID != "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     p + ".resource_id",
				Message:  "resource_id is already set; setup will create a new resource",
			})
		}
	}
	return issues
}

func validateSources(c *Config) []Issue {
	var issues []Issue
	for i, d := range c.Datasets {
		p := fmt.Sprintf("datasets[%d]", i)
		if strings.TrimSpace(d.Directory) == "" {
			issues = append(issues, errorf(p+".directory", "directory must not be empty"))
		}
		if d.Encoding != "" {
			if _, err := htmlindex.Get(d.Encoding); err != nil {
				issues = append(issues, errorf(p+".encoding", "unknown encoding %q", d.Encoding))
			}
		}
		if _, err := d.Location(); err != nil {
			issues = append(issues, errorf(p+".timezone", "%v", err))
		}
	}
	return issues
}

func validateCommon(c *Config) []Issue {
	return append(validateDatastore(c.Datastore), validateBase(c)...)
}

func validateDatastore(ds DatastoreConfig) []Issue {
	var issues []Issue

	switch u, err := url.Parse(ds.URL); {
	case strings.TrimSpace(ds.URL) == "":
		issues = append(issues, errorf("datastore.url", "datastore.url must not be empty"))
	case err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https"):
		issues = append(issues, errorf("datastore.url", "datastore.url %q is not an http(s) URL", ds.URL))
	case u.Scheme == "http":
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "datastore.url", Message: "API key will be sent over plain http"})
	}
	if strings.TrimSpace(ds.APIKey) == "" {
		issues = append(issues, errorf("datastore.api_key", "datastore.api_key must not be empty"))
	}
	if ds.InsecureSkipVerify {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "datastore.insecure_skip_verify", Message: "TLS certificate verification is disabled"})
	}
	if ds.Timeout < 0 {
		issues = append(issues, errorf("datastore.timeout", "timeout must not be negative"))
	}
	return issues
}

func validateBase(c *Config) []Issue {
	var issues []Issue
	if len(c.Datasets) == 0 {
		issues = append(issues, errorf("datasets", "at least one dataset must be configured"))
	}
	seen := map[string]int{}
	for i, d := range c.Datasets {
		p := fmt.Sprintf("datasets[%d].id", i)
		if strings.TrimSpace(d.ID) == "" {
			issues = append(issues, errorf(p, "dataset id must not be empty"))
			continue
		}
		if j, dup := seen[d.ID]; dup {
			issues = append(issues, errorf(p, "dataset id %q already used by datasets[%d]", d.ID, j))
			continue
		}
		seen[d.ID] = i
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		issues = append(issues, errorf("log_format", "log_format must be text or json, got %q", c.LogFormat))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "log_level", Message: fmt.Sprintf("unknown log level %q; using info", c.LogLevel)})
	}

	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

var knownStateKinds = []string{"file", "sqlite", "postgres", "mssql", "mysql", "mongo"}

func validateState(s StateConfig) []Issue {
	var issues []Issue
	known := false
	for _, k := range knownStateKinds {
		if s.Kind == k {
			known = true
		}
	}
	if !known {
		issues = append(issues, errorf("state.kind", "unknown state kind %q; expected one of %s", s.Kind, strings.Join(knownStateKinds, ", ")))
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, errorf("state.dsn", "state.dsn must not be empty"))
	}
	return issues
}

func validateNotify(n NotifyConfig) []Issue {
	if !n.Enabled() {
		return nil
	}
	u, err := url.Parse(n.AMQPURL)
	if err != nil || u.Host == "" || (u.Scheme != "amqp" && u.Scheme != "amqps") {
		return []Issue{errorf("notify.amqp_url", "notify.amqp_url is not an amqp(s) URL")}
	}
	return nil
}

func validateMetrics(m MetricsConfig) []Issue {
	switch m.Backend {
	case "none":
	case "prompush":
		if m.PushgatewayURL == "" {
			return []Issue{errorf("metrics.pushgateway_url", "prompush backend requires pushgateway_url")}
		}
	case "datadog":
		if m.DatadogAddr == "" {
			return []Issue{errorf("metrics.datadog_addr", "datadog backend requires datadog_addr")}
		}
	default:
		return []Issue{errorf("metrics.backend", "unknown metrics backend %q", m.Backend)}
	}
	return nil
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}
