package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/decatholac/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Discord bot and the fetch schedule (default)",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	if err := loadConfig(true); err != nil {
		return err
	}

	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.StartBot(); err != nil {
		return err
	}

	logger.Info().Msg("Running - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	return nil
}
