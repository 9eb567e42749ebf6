// Command eksupdater keeps CKAN DataStore resources up to date with the
// monthly EKS export files.
//
//	eksupdater setup [dataset...]   create the dataset and table, print resource_id
//	eksupdater update [dataset...]  upload every new month
//	eksupdater schedule             run update on the configured cron schedule
//	eksupdater version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"eksupdater/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	var cerr *config.ConfigurationError
	if errors.As(err, &cerr) {
		fmt.Fprintln(w, "Error: invalid configuration")
		for _, iss := range cerr.Issues {
			fmt.Fprintf(w, "  %s: %s\n", iss.Path, iss.Message)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
