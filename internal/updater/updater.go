// Package updater keeps DataStore resources in sync with the monthly EKS
// export files.
//
// For every configured dataset a run walks a small state machine:
//
//	idle -> determining_start -> processing_month <-> advancing -> done
//
// with failed reachable from every non-terminal phase. The start month is
// the month recorded in the resumption state, which is processed again to
// pick up late corrections, or the oldest file in the directory. Each month
// is validated, mapped, uploaded in batches and then checkpointed. The run
// stops at the first month without a file.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"eksupdater/internal/config"
	"eksupdater/internal/datasource/file"
	"eksupdater/internal/metrics"
	"eksupdater/internal/notify"
	csvparser "eksupdater/internal/parser/csv"
	"eksupdater/internal/period"
	"eksupdater/internal/schema"
	"eksupdater/internal/storage"
	"eksupdater/internal/transformer"
	"eksupdater/internal/transformer/builtin"
	"eksupdater/pkg/records"
)

// Phase is a state of a dataset run.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseDeterminingStart Phase = "determining_start"
	PhaseProcessingMonth  Phase = "processing_month"
	PhaseAdvancing        Phase = "advancing"
	PhaseDone             Phase = "done"
	PhaseFailed           Phase = "failed"
)

// Progress is reported when a file is opened and after every batch.
type Progress struct {
	Dataset string
	Period  period.YearMonth
	File    string
	Records int
}

// SourceFunc opens the export directory of a dataset.
type SourceFunc func(dir string) Source

// Deps are the collaborators of an Updater. Registry is always required;
// Update needs Uploader and State, Setup needs Provisioner.
type Deps struct {
	Registry    *schema.Registry
	Uploader    Uploader
	Provisioner Provisioner
	State       StateStore

	// Events is optional. A failed publish is logged and does not stop
	// the run.
	Events Publisher

	// Sources defaults to file.NewDir.
	Sources SourceFunc

	Metrics   *metrics.Recorder
	Logger    *slog.Logger
	BatchSize int
	Progress  func(Progress)
}

// Updater carries everything a run needs. Build one per process with New.
type Updater struct {
	registry    *schema.Registry
	uploader    Uploader
	provisioner Provisioner
	state       StateStore
	events      Publisher
	sources     SourceFunc
	metrics     *metrics.Recorder
	logger      *slog.Logger
	batchSize   int
	progress    func(Progress)
}

// New validates d and applies defaults.
func New(d Deps) (*Updater, error) {
	if d.Registry == nil {
		return nil, errors.New("updater: schema registry is required")
	}
	u := &Updater{
		registry:    d.Registry,
		uploader:    d.Uploader,
		provisioner: d.Provisioner,
		state:       d.State,
		events:      d.Events,
		sources:     d.Sources,
		metrics:     d.Metrics,
		logger:      d.Logger,
		batchSize:   d.BatchSize,
		progress:    d.Progress,
	}
	if u.logger == nil {
		u.logger = slog.New(slog.DiscardHandler)
	}
	if u.sources == nil {
		logger := u.logger
		u.sources = func(dir string) Source { return file.NewDir(dir, logger) }
	}
	if u.batchSize < 1 {
		u.batchSize = DefaultBatchSize
	}
	if u.progress == nil {
		u.progress = func(Progress) {}
	}
	return u, nil
}

// Update runs every dataset in order. It stops at the first failing dataset
// and returns the summary of the datasets handled so far.
func (u *Updater) Update(ctx context.Context, datasets []config.DatasetConfig) (Summary, error) {
	if u.uploader == nil || u.state == nil {
		return Summary{}, errors.New("updater: update needs an uploader and a state store")
	}
	st, err := u.state.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load resumption state: %w", err)
	}

	var sum Summary
	for _, d := range datasets {
		ds, err := u.UpdateDataset(ctx, d, st)
		sum.Datasets = append(sum.Datasets, ds)
		if err != nil {
			return sum, fmt.Errorf("dataset %s: %w", d.ID, err)
		}
	}
	return sum, nil
}

// UpdateDataset runs one dataset starting from its entry in st.
func (u *Updater) UpdateDataset(ctx context.Context, d config.DatasetConfig, st storage.State) (DatasetSummary, error) {
	start := time.Now()
	r := &run{
		u:      u,
		cfg:    d,
		src:    u.sources(d.Directory),
		logger: u.logger.With("dataset", d.ID),
		phase:  PhaseIdle,
		sum:    DatasetSummary{ID: d.ID},
	}
	err := r.execute(ctx, st)
	r.sum.Elapsed = time.Since(start)
	u.metrics.Step(d.ID, "update", err, r.sum.Elapsed)
	if err != nil {
		r.enter(PhaseFailed, "error", err)
		return r.sum, err
	}
	return r.sum, nil
}

// run is the state of one dataset while it is being updated.
type run struct {
	u      *Updater
	cfg    config.DatasetConfig
	src    Source
	loc    *time.Location
	logger *slog.Logger
	phase  Phase
	sum    DatasetSummary

	// dryRun maps records without uploading them.
	dryRun bool
}

func (r *run) enter(p Phase, args ...any) {
	r.logger.Debug("phase transition", append([]any{"from", r.phase, "to", p}, args...)...)
	r.phase = p
}

func (r *run) execute(ctx context.Context, st storage.State) error {
	loc, err := r.cfg.Location()
	if err != nil {
		return err
	}
	r.loc = loc

	r.enter(PhaseDeterminingStart)
	ym, err := r.startMonth(ctx, st)
	if err != nil {
		return err
	}
	r.sum.Start = ym

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.enter(PhaseProcessingMonth, "period", ym.String())
		found, err := r.processMonth(ctx, ym)
		if err != nil {
			return err
		}
		if !found {
			r.enter(PhaseDone)
			return nil
		}
		r.enter(PhaseAdvancing)
		ym = ym.Next()
	}
}

func (r *run) startMonth(ctx context.Context, st storage.State) (period.YearMonth, error) {
	if ym, ok := st[r.cfg.ID]; ok {
		r.logger.Info("resuming from recorded month", "period", ym.String())
		return ym, nil
	}

	revs := r.u.registry.Revisions(r.cfg.SchemaID())
	if len(revs) == 0 {
		return period.YearMonth{}, &schema.UnknownSchemaError{ID: r.cfg.SchemaID()}
	}
	parsers := make([]file.NameParser, len(revs))
	for i, rev := range revs {
		parsers[i] = rev
	}
	ym, err := r.src.Oldest(ctx, parsers...)
	if err != nil {
		return period.YearMonth{}, err
	}
	r.logger.Info("no recorded month, starting from the oldest file", "period", ym.String())
	return ym, nil
}

// processMonth uploads the file of ym. It reports false when the file does
// not exist, which ends the run.
func (r *run) processMonth(ctx context.Context, ym period.YearMonth) (found bool, err error) {
	started := time.Now()
	d, err := r.u.registry.Lookup(r.cfg.SchemaID(), ym)
	if err != nil {
		return false, err
	}
	name := d.FileName(ym)
	logger := r.logger.With("period", ym.String(), "file", name)

	rc, err := r.src.Open(ctx, name)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("file not available, it looks like we are done")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer rc.Close()

	defer func() { r.u.metrics.Step(r.cfg.ID, "month", err, time.Since(started)) }()

	logger.Debug("processing file", "schema", d.String())
	r.u.progress(Progress{Dataset: r.cfg.ID, Period: ym, File: name})

	n, dups, batches, err := r.uploadFile(ctx, rc, d, ym, name)
	r.sum.Duplicates += dups
	r.u.metrics.Records(r.cfg.ID, metrics.KindDuplicate, dups)
	if err != nil {
		return false, err
	}

	if err := r.u.state.Save(ctx, r.cfg.ID, ym); err != nil {
		return false, fmt.Errorf("save resumption state: %w", err)
	}

	r.publish(ctx, ym, name, n)

	r.sum.Files++
	r.sum.Records += n
	r.sum.Batches += batches
	r.sum.Last = ym
	r.u.metrics.Files(r.cfg.ID, 1)
	logger.Info("DataStore resource successfully updated", "records", n, "batches", batches)
	return true, nil
}

func (r *run) publish(ctx context.Context, ym period.YearMonth, name string, n int) {
	if r.u.events == nil {
		return
	}
	err := r.u.events.Publish(ctx, notify.Event{
		Type:       notify.TypeMonthUploaded,
		Dataset:    r.cfg.ID,
		ResourceID: r.cfg.ResourceID,
		Period:     ym.String(),
		File:       name,
		Records:    n,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn("could not publish upload event", "period", ym.String(), "error", err)
	}
}

func (r *run) uploadFile(ctx context.Context, rc io.Reader, d *schema.Dataset, ym period.YearMonth, name string) (n, dups, batches int, err error) {
	rd, err := csvparser.NewReader(rc, csvparser.Options{Encoding: r.cfg.Encoding})
	if err != nil {
		return 0, 0, 0, err
	}
	if err := rd.ReadHeader(d); err != nil {
		var sve *csvparser.SchemaValidationError
		if errors.As(err, &sve) {
			sve.File = name
		}
		return 0, 0, 0, err
	}

	mapper := transformer.NewMapper(d, r.loc)
	var dd *builtin.DupDetector
	if r.cfg.ReportDuplicates {
		dd = builtin.NewDupDetector(d.PrimaryKey)
	}

	b := newBatcher(r.u.batchSize, func(ctx context.Context, recs []records.Record) error {
		if r.dryRun {
			return nil
		}
		if err := r.u.uploader.Upsert(ctx, r.cfg.ResourceID, recs); err != nil {
			return err
		}
		r.u.metrics.Batches(r.cfg.ID, 1)
		r.u.metrics.Records(r.cfg.ID, metrics.KindUploaded, len(recs))
		return nil
	})

	read := 0
	for {
		if err := ctx.Err(); err != nil {
			return b.records, dups, b.batches, err
		}
		line, row, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return b.records, dups, b.batches, fmt.Errorf("%s: %w", name, err)
		}
		rec, err := mapper.Map(line, row)
		if err != nil {
			return b.records, dups, b.batches, fmt.Errorf("%s: %w", name, err)
		}
		read++
		if dd != nil {
			if dup, ok := dd.Observe(line, rec); ok {
				dups++
				r.logger.Warn("duplicate primary key", "file", name, "key", dup.Key, "first_line", dup.FirstLine, "line", dup.Line)
			}
		}
		before := b.batches
		if err := b.Add(ctx, rec); err != nil {
			return b.records, dups, b.batches, err
		}
		if b.batches != before {
			r.u.progress(Progress{Dataset: r.cfg.ID, Period: ym, File: name, Records: b.records})
		}
	}
	if err := b.Flush(ctx); err != nil {
		return b.records, dups, b.batches, err
	}
	r.u.metrics.Records(r.cfg.ID, metrics.KindRead, read)
	r.u.progress(Progress{Dataset: r.cfg.ID, Period: ym, File: name, Records: b.records})
	return b.records, dups, b.batches, nil
}
