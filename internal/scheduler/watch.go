package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// DefaultDebounce is how long watched directories must stay quiet before a
// change starts a run.
const DefaultDebounce = 10 * time.Second

// WithWatch also runs the job when a file is created in or written to one
// of dirs. Bursts of events, such as a large file being copied in, start a
// single run once the directories have been quiet for debounce.
func WithWatch(dirs []string, debounce time.Duration) Option {
	return func(s *Scheduler) {
		s.watchDirs = dirs
		s.debounce = debounce
		if s.debounce <= 0 {
			s.debounce = DefaultDebounce
		}
	}
}

func (s *Scheduler) startWatch(ctx context.Context, wg *sync.WaitGroup, job cron.Job) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scheduler: create watcher: %w", err)
	}
	for _, dir := range s.watchDirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("scheduler: watch %s: %w", dir, err)
		}
	}
	s.logger.Info("watching export directories", "dirs", s.watchDirs, "debounce", s.debounce)

	wg.Add(1)
	go func() {
		defer wg.Done()
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				s.logger.Debug("export directory changed", "file", ev.Name, "op", ev.Op.String())
				if timer == nil {
					timer = time.NewTimer(s.debounce)
				} else {
					timer.Reset(s.debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if ctx.Err() != nil {
					return
				}
				s.logger.Info("export directory changed, starting a run")
				job.Run()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("watcher error", "error", err)
			}
		}
	}()
	return w, nil
}
