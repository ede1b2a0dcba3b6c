package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/decatholac/internal/common"
)

var (
	// Command-line flags
	configFiles []string // --config may repeat, later files override earlier ones
	logLevel    string
	badgerPath  string

	// Global state, set by loadConfig
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "decatholac-mango-tarnished",
	Short:         "Announce new manga chapters to Discord",
	Long:          `Checks manga sources on a schedule and posts new chapters to each Discord server's feed channel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	flags.StringVar(&badgerPath, "db", "", "Database directory (overrides config)")

	rootCmd.AddCommand(runCmd, fetchCmd, targetsCmd, chaptersCmd, versionCmd)
}

// loadConfig follows the startup order: config files, env, CLI flags, logger, banner
func loadConfig(printBanner bool) error {
	if len(configFiles) == 0 {
		discovered, err := common.DiscoverConfigFiles()
		if err != nil {
			return fmt.Errorf("%w: pass --config or put %s next to the executable", err, common.ConfigFileName)
		}
		configFiles = discovered
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}

	common.ApplyFlagOverrides(config, logLevel, badgerPath)

	logger = common.InitLogger(config)

	if printBanner {
		common.PrintBanner(common.GetVersion())
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("Configuration loaded")

	return nil
}

func main() {
	if execPath, err := os.Executable(); err == nil {
		common.InstallCrashHandler(filepath.Join(filepath.Dir(execPath), "logs"))
	}
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		// Falls back to the console logger when config never loaded
		common.GetLogger().Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
