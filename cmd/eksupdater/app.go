package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"eksupdater/internal/config"
	"eksupdater/internal/datastore"
	"eksupdater/internal/metrics"
	"eksupdater/internal/metrics/datadog"
	"eksupdater/internal/metrics/prompush"
	"eksupdater/internal/notify/rabbitmq"
	"eksupdater/internal/schema"
	"eksupdater/internal/storage"
	"eksupdater/internal/updater"

	// Every state backend, selected by state.kind.
	_ "eksupdater/internal/storage/all"
)

// app holds what every command builds from the configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	level   slog.Level
	metrics *metrics.Recorder
	backend metrics.Backend

	closers []func() error
}

type validator func(*config.Config) []config.Issue

func loadApp(flags *globalFlags, stderr io.Writer, validate validator) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	level := logLevel(cfg, flags.verbose)
	logger := newLogger(stderr, cfg.LogFormat, level)

	issues := validate(cfg)
	for _, w := range config.Warnings(issues) {
		logger.Warn("configuration", "path", w.Path, "message", w.Message)
	}
	if err := config.Check(issues); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, level: level}
	backend, err := newMetricsBackend(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	a.backend = backend
	a.metrics = metrics.NewRecorder(backend)
	if c, ok := backend.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	logger.Debug("configuration loaded", "path", flags.configPath, "datasets", len(cfg.Datasets), "metrics", cfg.Metrics.Backend)
	return a, nil
}

func logLevel(cfg *config.Config, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return cfg.Level()
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newMetricsBackend(m config.MetricsConfig) (metrics.Backend, error) {
	switch m.Backend {
	case "", "none":
		return nil, nil
	case "prompush":
		return prompush.NewBackend(m.Job, m.PushgatewayURL)
	case "datadog":
		return datadog.NewBackend(datadog.Config{Addr: m.DatadogAddr, Namespace: m.Namespace, GlobalTags: m.Tags})
	}
	return nil, fmt.Errorf("metrics: unknown backend %q", m.Backend)
}

// flushMetrics pushes metrics, logging rather than failing.
func (a *app) flushMetrics() {
	if a.backend == nil {
		return
	}
	if err := a.metrics.Flush(); err != nil {
		a.logger.Warn("metrics flush failed", "error", err)
	}
}

// Close flushes metrics and releases everything opened through a.
func (a *app) Close() error {
	a.flushMetrics()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *app) client() (*datastore.Client, error) {
	ds := a.cfg.Datastore
	return datastore.NewClient(datastore.Config{
		BaseURL:            ds.URL,
		APIKey:             ds.APIKey,
		Timeout:            ds.Timeout,
		InsecureSkipVerify: ds.InsecureSkipVerify,
		UserAgent:          ds.UserAgent,
	})
}

func (a *app) registry() (*schema.Registry, error) {
	return schema.Load(a.cfg.SchemaDirs...)
}

// updater builds an Updater. withState opens the resumption state store.
func (a *app) updater(ctx context.Context, withState bool, progress func(updater.Progress)) (*updater.Updater, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	client, err := a.client()
	if err != nil {
		return nil, err
	}

	deps := updater.Deps{
		Registry:    reg,
		Uploader:    client,
		Provisioner: client,
		Metrics:     a.metrics,
		Logger:      a.logger,
		BatchSize:   a.cfg.BatchSize,
		Progress:    progress,
	}
	if withState {
		st, err := storage.New(ctx, storage.Config{Kind: a.cfg.State.Kind, DSN: a.cfg.State.DSN, Table: a.cfg.State.Table})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		deps.State = st

		if n := a.cfg.Notify; n.Enabled() {
			pub, err := rabbitmq.New(rabbitmq.Config{
				URL:        n.AMQPURL,
				Exchange:   n.Exchange,
				RoutingKey: n.RoutingKey,
				Queue:      n.Queue,
			}, a.logger)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, pub.Close)
			deps.Events = pub
		}
	}
	return updater.New(deps)
}

// selectDatasets returns the configured datasets named by ids, or all of
// them when ids is empty.
func (a *app) selectDatasets(ids []string) ([]config.DatasetConfig, error) {
	if len(ids) == 0 {
		return a.cfg.Datasets, nil
	}
	out := make([]config.DatasetConfig, 0, len(ids))
	for _, id := range ids {
		d, ok := a.cfg.Dataset(id)
		if !ok {
			return nil, fmt.Errorf("dataset %q is not configured", id)
		}
		out = append(out, d)
	}
	return out, nil
}
