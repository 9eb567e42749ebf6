// Package metrics records operational counters of the updater behind a
// pluggable Backend. Concrete backends live in subpackages (prompush,
// datadog); the CLI builds one and hands a Recorder to the updater.
package metrics

import "time"

// Metric names and label values emitted by Recorder.
const (
	StepTotal     = "eks_step_total"
	StepDuration  = "eks_step_duration_seconds"
	RecordsTotal  = "eks_records_total"
	BatchesTotal  = "eks_batches_total"
	FilesTotal    = "eks_files_total"
	StatusSuccess = "success"
	StatusFailure = "failure"
	KindRead      = "read"
	KindUploaded  = "uploaded"
	KindDuplicate = "duplicate"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface a metrics system must provide.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-like value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered data, if the backend buffers.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

// Recorder turns updater events into backend calls. The zero value and a
// nil *Recorder both discard everything.
type Recorder struct {
	backend Backend
}

// NewRecorder returns a Recorder writing to b. A nil b discards.
func NewRecorder(b Backend) *Recorder {
	return &Recorder{backend: b}
}

func (r *Recorder) b() Backend {
	if r == nil || r.backend == nil {
		return nopBackend{}
	}
	return r.backend
}

// Flush delegates to the backend.
func (r *Recorder) Flush() error { return r.b().Flush() }

// Step counts one execution of step and observes its duration.
// Steps are "setup", "update" and "month".
func (r *Recorder) Step(dataset, step string, err error, d time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	lbls := Labels{"dataset": dataset, "step": step, "status": status}
	b := r.b()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Records adds delta to the record counter of kind.
func (r *Recorder) Records(dataset, kind string, delta int) {
	if delta <= 0 {
		return
	}
	r.b().IncCounter(RecordsTotal, float64(delta), Labels{"dataset": dataset, "kind": kind})
}

// Batches adds delta upserted batches.
func (r *Recorder) Batches(dataset string, delta int) {
	if delta <= 0 {
		return
	}
	r.b().IncCounter(BatchesTotal, float64(delta), Labels{"dataset": dataset})
}

// Files adds delta fully processed export files.
func (r *Recorder) Files(dataset string, delta int) {
	if delta <= 0 {
		return
	}
	r.b().IncCounter(FilesTotal, float64(delta), Labels{"dataset": dataset})
}
