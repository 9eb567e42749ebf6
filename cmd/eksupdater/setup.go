package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eksupdater/internal/config"
)

func newSetupCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "setup [dataset...]",
		Short: "Create the CKAN dataset and DataStore table",
		Long: `setup creates a CKAN dataset and an empty DataStore table for each
selected dataset (all configured ones by default) and prints the new
resource_id, which belongs in the configuration before running update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags, cmd.ErrOrStderr(), config.ValidateForSetup)
			if err != nil {
				return err
			}
			defer a.Close()

			datasets, err := a.selectDatasets(args)
			if err != nil {
				return err
			}
			u, err := a.updater(cmd.Context(), false, nil)
			if err != nil {
				return err
			}

			results, err := u.Setup(cmd.Context(), datasets)
			out := cmd.OutOrStdout()
			for _, r := range results {
				if len(datasets) > 1 {
					fmt.Fprintf(out, "%s: ", r.DatasetID)
				}
				fmt.Fprintf(out, "resource_id=%s\n", r.ResourceID)
			}
			return err
		},
	}
}
