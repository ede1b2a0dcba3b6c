package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/decatholac/internal/app"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch pass and store new chapters, without Discord",
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(false); err != nil {
		return err
	}

	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := application.Gofer.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, result := range report.Results {
		if result.Err != nil {
			fmt.Fprintf(out, "FAIL  %-30s %v\n", result.Target, result.Err)
			continue
		}
		fmt.Fprintf(out, "OK    %-30s found %d, new %d\n", result.Target, result.Found, result.NewChapters)
	}
	fmt.Fprintln(out, report.String())

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d targets failed", report.Failed, report.Targets)
	}
	return nil
}
