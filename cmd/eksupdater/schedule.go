package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"eksupdater/internal/config"
	"eksupdater/internal/scheduler"
)

func newScheduleCmd(flags *globalFlags) *cobra.Command {
	var (
		now      bool
		watch    bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run update on the configured cron schedule",
		Long: `schedule stays in the foreground and runs update for every configured
dataset whenever the "schedule" cron expression fires. A run that is still
going when the next one is due makes that next one skip. With --watch, a new
or changed file in any dataset directory also starts a run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(flags, cmd.ErrOrStderr(), config.ValidateForSchedule)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.updater(cmd.Context(), true, nil)
			if err != nil {
				return err
			}

			job := func(ctx context.Context) error {
				defer a.flushMetrics()
				sum, err := u.Update(ctx, a.cfg.Datasets)
				for _, ds := range sum.Datasets {
					a.logger.Info(ds.Message(), "dataset", ds.ID, "records", ds.Records, "elapsed", ds.Elapsed)
				}
				return err
			}

			loc, err := a.cfg.ScheduleLocation()
			if err != nil {
				return err
			}
			opts := []scheduler.Option{scheduler.WithRunNow(now), scheduler.WithLocation(loc)}
			if watch {
				dirs := make([]string, 0, len(a.cfg.Datasets))
				for _, d := range a.cfg.Datasets {
					dirs = append(dirs, d.Directory)
				}
				opts = append(opts, scheduler.WithWatch(dirs, debounce))
			}

			s, err := scheduler.New(a.cfg.Schedule, job, a.logger, opts...)
			if err != nil {
				return err
			}
			return s.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "run once immediately, then follow the schedule")
	cmd.Flags().BoolVar(&watch, "watch", false, "also run when files appear in the dataset directories")
	cmd.Flags().DurationVar(&debounce, "watch-debounce", scheduler.DefaultDebounce, "quiet period before a watched change starts a run")
	return cmd
}
