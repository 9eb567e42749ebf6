package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eksupdater/internal/config"
)

func newUpdateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update [dataset...]",
		Short: "Upload every month not yet in the DataStore",
		Long: `update resumes each dataset at its last uploaded month, uploads that month
again together with every later month found in the export directory, and
records progress after each file. It stops at the first missing month.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags, cmd.ErrOrStderr(), config.ValidateForUpdate)
			if err != nil {
				return err
			}
			defer a.Close()

			datasets, err := a.selectDatasets(args)
			if err != nil {
				return err
			}

			prog := newProgress(cmd.ErrOrStderr(), a.level)
			u, err := a.updater(cmd.Context(), true, prog.Report)
			if err != nil {
				return err
			}

			prog.Start()
			sum, err := u.Update(cmd.Context(), datasets)
			prog.Stop()

			out := cmd.OutOrStdout()
			for _, ds := range sum.Datasets {
				if len(sum.Datasets) > 1 {
					fmt.Fprintf(out, "%s: ", ds.ID)
				}
				fmt.Fprintln(out, ds.Message())
				a.logger.Info("dataset finished", "dataset", ds.ID, "files", ds.Files,
					"records", ds.Records, "batches", ds.Batches, "duplicates", ds.Duplicates,
					"elapsed", ds.Elapsed)
			}
			return err
		},
	}
}
