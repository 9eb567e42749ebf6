package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"

	"eksupdater/internal/updater"
)

// progress shows the current file on a terminal. It is a no-op when stderr
// is not a terminal, when NO_SPINNER is set or when log lines would be
// written to the same terminal while it redraws.
type progress struct {
	sp *spinner.Spinner
}

// spinnerLevel reports whether logging at level leaves the terminal to the
// spinner. Info and debug lines are written on every file.
func spinnerLevel(level slog.Level) bool { return level >= slog.LevelWarn }

func newProgress(w io.Writer, level slog.Level) *progress {
	f, ok := w.(*os.File)
	if !ok || !spinnerLevel(level) || os.Getenv("NO_SPINNER") != "" {
		return &progress{}
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return &progress{}
	}
	sp := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(f))
	sp.Suffix = " starting"
	return &progress{sp: sp}
}

func (p *progress) Start() {
	if p.sp != nil {
		p.sp.Start()
	}
}

func (p *progress) Stop() {
	if p.sp != nil {
		p.sp.Stop()
	}
}

// Report implements the updater progress callback.
func (p *progress) Report(ev updater.Progress) {
	if p.sp == nil {
		return
	}
	p.sp.Lock()
	p.sp.Suffix = fmt.Sprintf(" %s %s: %d records uploaded", ev.Dataset, ev.File, ev.Records)
	p.sp.Unlock()
}
