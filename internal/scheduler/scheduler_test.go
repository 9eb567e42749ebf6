package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every day", func(context.Context) error { return nil }, nil)
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestRunNowAndStop(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{}, 1)
	s, err := New("0 3 * * *", func(context.Context) error {
		runs.Add(1)
		done <- struct{}{}
		return nil
	}, nil, WithRunNow(true), WithLocation(time.UTC))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunWaitsForRunningJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var finished atomic.Bool

	s, err := New("@every 1h", func(ctx context.Context) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	}, nil, WithRunNow(true))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	<-started
	cancel()

	select {
	case <-errc:
		t.Fatal("Run returned while the job was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-errc)
	assert.True(t, finished.Load())
}

func TestExecuteLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s, err := New("@daily", func(context.Context) error { return errors.New("boom") }, logger)
	require.NoError(t, err)

	s.execute(context.Background())
	assert.Contains(t, buf.String(), "scheduled run failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestExecuteSkipsAfterCancel(t *testing.T) {
	called := false
	s, err := New("@daily", func(context.Context) error { called = true; return nil }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.execute(ctx)
	assert.False(t, called)
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := cronLogger{slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info("skip", "entry", 1)
	l.Error(errors.New("panic"), "recovered")

	out := buf.String()
	assert.Contains(t, out, "cron: skip")
	assert.Contains(t, out, "entry=1")
	assert.Contains(t, out, "cron: recovered")
	assert.Contains(t, out, "error=panic")
}

func TestWatchRunsOnNewFile(t *testing.T) {
	dir := t.TempDir()
	done := make(chan struct{}, 1)
	s, err := New("@yearly", func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}, nil, WithWatch([]string{dir}, 20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	// The watcher may not be registered yet, so keep dropping files in.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(5 * time.Second)
	for i := 0; ; i++ {
		select {
		case <-done:
			cancel()
			require.NoError(t, <-errc)
			return
		case <-tick.C:
			name := filepath.Join(dir, fmt.Sprintf("ZoznamZakaziekReport_2018-%d_.csv", i%12+1))
			require.NoError(t, os.WriteFile(name, []byte("x"), 0o600))
		case <-deadline:
			cancel()
			t.Fatal("job did not run after files were created")
		}
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	s, err := New("@yearly", func(context.Context) error { return nil }, nil,
		WithWatch([]string{filepath.Join(t.TempDir(), "missing")}, 0))
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, s.debounce)

	err = s.Run(context.Background())
	assert.ErrorContains(t, err, "scheduler: watch")
}

func TestWithLocation(t *testing.T) {
	bratislava, err := time.LoadLocation("Europe/Bratislava")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	s, err := New("0 3 * * *", func(context.Context) error { return nil }, nil, WithLocation(bratislava))
	require.NoError(t, err)
	assert.Equal(t, bratislava, s.cron.Location())

	s, err = New("0 3 * * *", func(context.Context) error { return nil }, nil, WithLocation(nil))
	require.NoError(t, err)
	assert.Equal(t, time.Local, s.cron.Location())
}
