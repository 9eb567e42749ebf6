package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

// fakeBackend records every call in memory.
type fakeBackend struct {
	mu         sync.Mutex
	counters   []counterCall
	histograms []histCall
	flushes    int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func TestRecorderStep(t *testing.T) {
	t.Parallel()

	fb := &fakeBackend{}
	r := NewRecorder(fb)

	r.Step("zakazky", "month", nil, 2*time.Second)
	r.Step("zakazky", "update", errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, fb.counters, 2)
	require.Len(t, fb.histograms, 2)

	assert.Equal(t, counterCall{StepTotal, 1, Labels{"dataset": "zakazky", "step": "month", "status": StatusSuccess}}, fb.counters[0])
	assert.Equal(t, StatusFailure, fb.counters[1].labels["status"])
	assert.Equal(t, StepDuration, fb.histograms[0].name)
	assert.InDelta(t, 2.0, fb.histograms[0].value, 1e-9)
	assert.InDelta(t, 1.5, fb.histograms[1].value, 1e-9)
}

func TestRecorderCounters(t *testing.T) {
	t.Parallel()

	fb := &fakeBackend{}
	r := NewRecorder(fb)

	r.Records("zakazky", KindRead, 3)
	r.Records("zakazky", KindDuplicate, 0)
	r.Batches("zakazky", 2)
	r.Batches("zakazky", -1)
	r.Files("zakazky", 1)

	assert.Equal(t, []counterCall{
		{RecordsTotal, 3, Labels{"dataset": "zakazky", "kind": KindRead}},
		{BatchesTotal, 2, Labels{"dataset": "zakazky"}},
		{FilesTotal, 1, Labels{"dataset": "zakazky"}},
	}, fb.counters)

	require.NoError(t, r.Flush())
	assert.Equal(t, 1, fb.flushes)
}

func TestNopRecorders(t *testing.T) {
	t.Parallel()

	for name, r := range map[string]*Recorder{
		"nil":         nil,
		"zero":        {},
		"nil backend": NewRecorder(nil),
	} {
		t.Run(name, func(t *testing.T) {
			r.Step("x", "month", nil, time.Second)
			r.Records("x", KindRead, 1)
			r.Batches("x", 1)
			r.Files("x", 1)
			assert.NoError(t, r.Flush())
		})
	}
}
