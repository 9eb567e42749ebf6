package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const configEnv = "EKSUPDATER_CONFIG"

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	defaultConfig := "config.yaml"
	if v := os.Getenv(configEnv); v != "" {
		defaultConfig = v
	}

	root := &cobra.Command{
		Use:   "eksupdater",
		Short: "Upload monthly EKS exports to a CKAN DataStore",
		Long: `eksupdater reads the monthly CSV exports of the EKS procurement
marketplace and upserts them into a CKAN DataStore resource, resuming from the
last uploaded month on every run.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		// Replaces cobra's own check, which reports unknown commands
		// without usage.
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return nil
			}
			_ = cmd.Usage()
			return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errors.New("no command given")
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&flags.configPath, "config", defaultConfig,
		"path to the configuration file (env "+configEnv+")")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newSetupCmd(flags),
		newUpdateCmd(flags),
		newScheduleCmd(flags),
		newCheckCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eksupdater %s (%s)\n", version, runtime.Version())
		},
	}
}
