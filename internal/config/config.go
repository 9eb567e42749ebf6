// Package config loads the YAML configuration of the updater.
//
// Loading order: a .env file in the working directory (if any) is loaded
// into the process environment, ${VAR} references in the YAML are expanded,
// the document is decoded, and defaults are applied. Validation is separate
// (ValidateForUpdate, ValidateForSetup) because the two commands need
// different subsets of the configuration.
//
// Example:
//
//	datastore:
//	  url: https://data.gov.sk
//	  api_key: ${CKAN_API_KEY}
//	datasets:
//	  - id: zakazky
//	    directory: /data/eks
//	    resource_id: 3b9c...
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load.
const (
	DefaultBatchSize = 1000
	DefaultTimeout   = 60 * time.Second
	DefaultStateKind = "file"
	DefaultStateDSN  = "datastore_updater.state"
	DefaultOwnerOrg  = "opendata_sk"
	DefaultUserAgent = "eksupdater"
	DefaultSchedule  = "0 3 * * *"

	DefaultExchange   = "eksupdater"
	DefaultRoutingKey = "month_uploaded"
)

// Config is the top-level document.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text or json

	// BatchSize is the number of records per datastore_upsert request.
	BatchSize int `yaml:"batch_size"`

	// Schedule is the cron expression used by the schedule command.
	Schedule string `yaml:"schedule"`

	// ScheduleTimezone is the zone Schedule is evaluated in; empty means
	// the local zone of the host.
	ScheduleTimezone string `yaml:"schedule_timezone"`

	// SchemaDirs are extra directories of table definitions loaded after the
	// built-in ones.
	SchemaDirs []string `yaml:"schema_dirs"`

	Datastore DatastoreConfig `yaml:"datastore"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Notify    NotifyConfig    `yaml:"notify"`
	Datasets  []DatasetConfig `yaml:"datasets"`
}

// DatastoreConfig points at the CKAN instance.
type DatastoreConfig struct {
	URL                string        `yaml:"url"`
	APIKey             string        `yaml:"api_key"`
	OwnerOrg           string        `yaml:"owner_org"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
	UserAgent          string        `yaml:"user_agent"`
}

// StateConfig selects the resumption state backend.
type StateConfig struct {
	Kind  string `yaml:"kind"`
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// MetricsConfig selects the metrics backend: none, prompush or datadog.
type MetricsConfig struct {
	Backend        string   `yaml:"backend"`
	Job            string   `yaml:"job"`
	PushgatewayURL string   `yaml:"pushgateway_url"`
	DatadogAddr    string   `yaml:"datadog_addr"`
	Namespace      string   `yaml:"namespace"`
	Tags           []string `yaml:"tags"`
}

// NotifyConfig enables a RabbitMQ message after every uploaded month. An
// empty AMQPURL disables it.
type NotifyConfig struct {
	AMQPURL    string `yaml:"amqp_url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`

	// Queue, when set, is declared and bound to the exchange.
	Queue string `yaml:"queue"`
}

// Enabled reports whether notifications are configured.
func (n NotifyConfig) Enabled() bool { return n.AMQPURL != "" }

// DatasetConfig is one dataset kept up to date in the DataStore.
type DatasetConfig struct {
	// ID is the key in the resumption state.
	ID string `yaml:"id"`

	// Schema is the table definition id; defaults to ID.
	Schema string `yaml:"schema"`

	// Directory holds the monthly export files.
	Directory string `yaml:"directory"`

	// ResourceID is the DataStore resource printed by setup.
	ResourceID string `yaml:"resource_id"`

	// Encoding of the export files, e.g. "windows-1250". Empty means UTF-8.
	Encoding string `yaml:"encoding"`

	// Timezone, when set, makes timestamps carry an explicit offset.
	Timezone string `yaml:"timezone"`

	// ReportDuplicates logs records repeating a primary key within a file.
	ReportDuplicates bool `yaml:"report_duplicates"`

	Dataset  PackageConfig  `yaml:"dataset"`
	Resource ResourceConfig `yaml:"resource"`
}

// PackageConfig describes the CKAN dataset created by setup.
type PackageConfig struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Notes    string `yaml:"notes"`
	OwnerOrg string `yaml:"owner_org"`
}

// ResourceConfig describes the DataStore resource created by setup.
type ResourceConfig struct {
	Name  string `yaml:"name"`
	Notes string `yaml:"notes"`
}

// SchemaID returns the table definition id of the dataset.
func (d DatasetConfig) SchemaID() string {
	if d.Schema != "" {
		return d.Schema
	}
	return d.ID
}

// Location resolves Timezone. It returns nil for an empty Timezone.
func (d DatasetConfig) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: timezone: %w", d.ID, err)
	}
	return loc, nil
}

// ScheduleLocation resolves ScheduleTimezone. It returns nil when unset.
func (c *Config) ScheduleLocation() (*time.Location, error) {
	if c.ScheduleTimezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("schedule_timezone: %w", err)
	}
	return loc, nil
}

// Dataset returns the configuration of dataset id.
func (c *Config) Dataset(id string) (DatasetConfig, bool) {
	for _, d := range c.Datasets {
		if d.ID == id {
			return d, true
		}
	}
	return DatasetConfig{}, false
}

// Level parses LogLevel. Unknown values fall back to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	c.Datastore.URL = strings.TrimRight(c.Datastore.URL, "/")
	if c.Datastore.Timeout == 0 {
		c.Datastore.Timeout = DefaultTimeout
	}
	if c.Datastore.UserAgent == "" {
		c.Datastore.UserAgent = DefaultUserAgent
	}
	if c.Datastore.OwnerOrg == "" {
		c.Datastore.OwnerOrg = DefaultOwnerOrg
	}
	if c.State.Kind == "" {
		c.State.Kind = DefaultStateKind
	}
	if c.State.DSN == "" && c.State.Kind == DefaultStateKind {
		c.State.DSN = DefaultStateDSN
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = "none"
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "eksupdater"
	}
	if c.Notify.Enabled() {
		if c.Notify.Exchange == "" {
			c.Notify.Exchange = DefaultExchange
		}
		if c.Notify.RoutingKey == "" {
			c.Notify.RoutingKey = DefaultRoutingKey
		}
	}
	for i := range c.Datasets {
		d := &c.Datasets[i]
		if d.Dataset.OwnerOrg == "" {
			d.Dataset.OwnerOrg = c.Datastore.OwnerOrg
		}
		if d.Resource.Name == "" && d.ID != "" {
			d.Resource.Name = strings.ToUpper(d.ID[:1]) + d.ID[1:]
		}
	}
}
