package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"eksupdater/internal/config"
	"eksupdater/internal/updater"
)

func newCheckCmd(flags *globalFlags) *cobra.Command {
	var datasetID string
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate export files without uploading them",
		Long: `check reads each export file from the dataset directory, validates its
header against the schema revision of its month and converts every row, but
uploads nothing and leaves the resumption state untouched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags, cmd.ErrOrStderr(), config.ValidateForCheck)
			if err != nil {
				return err
			}
			defer a.Close()

			d := a.cfg.Datasets[0]
			if datasetID != "" {
				ds, err := a.selectDatasets([]string{datasetID})
				if err != nil {
					return err
				}
				d = ds[0]
			}

			reg, err := a.registry()
			if err != nil {
				return err
			}
			u, err := updater.New(updater.Deps{Registry: reg, Logger: a.logger, Metrics: a.metrics})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var errs []error
			for _, name := range args {
				rep, err := u.Verify(cmd.Context(), d, name)
				if err != nil {
					fmt.Fprintf(out, "%s: FAIL %v\n", name, err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok period=%s schema=%s records=%d duplicates=%d\n",
					rep.File, rep.Period, rep.Schema, rep.Records, rep.Duplicates)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d files failed: %w", len(errs), len(args), errors.Join(errs...))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetID, "dataset", "", "dataset the files belong to (default: the first configured)")
	return cmd
}
