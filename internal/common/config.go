package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

const (
	// ConfigFileName is looked up next to the executable, then in the working directory
	ConfigFileName = "config.toml"

	// DefaultSchedule runs the fetch pass daily at 01:00:00
	DefaultSchedule = "0 0 1 * * *"

	envPrefix = "DECATHOLAC_"
)

// ErrMissingConfig is returned when no config file can be found
var ErrMissingConfig = errors.New("missing config file")

// Config represents the application configuration
type Config struct {
	DiscordToken string           `toml:"discord_token"`
	Schedule     string           `toml:"schedule"` // 6-field cron, seconds first
	Targets      []TargetConfig   `toml:"targets"`
	TargetsDir   TargetsDirConfig `toml:"targets_dir"`
	Storage      StorageConfig    `toml:"storage"`
	Logging      LoggingConfig    `toml:"logging"`
	Fetch        FetchConfig      `toml:"fetch"`
	Announcer    AnnouncerConfig  `toml:"announcer"`
}

// TargetsDirConfig points at a directory of extra target files (*.toml, *.yaml, *.yml)
type TargetsDirConfig struct {
	Dir string `toml:"dir"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05"
}

// FetchConfig controls how target sources are downloaded
type FetchConfig struct {
	Timeout         string `toml:"timeout"` // e.g. "30s"
	UserAgent       string `toml:"user_agent"`
	Concurrency     int    `toml:"concurrency"`       // targets fetched at once
	PerHostInterval string `toml:"per_host_interval"` // minimum gap between requests to one host
	MaxAttempts     int    `toml:"max_attempts"`
}

// TimeoutDuration returns the request timeout, 30s when unset or invalid
func (f FetchConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(f.Timeout, 30*time.Second)
}

// PerHostIntervalDuration returns the per-host request gap, 1s when unset or invalid
func (f FetchConfig) PerHostIntervalDuration() time.Duration {
	return parseDurationOr(f.PerHostInterval, time.Second)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

type AnnouncerConfig struct {
	Enabled    bool `toml:"enabled"`
	EmbedColor int  `toml:"embed_color"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Schedule: DefaultSchedule,
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Fetch: FetchConfig{
			Timeout:         "30s",
			UserAgent:       "decatholac-mango-tarnished/" + Version,
			Concurrency:     4,
			PerHostInterval: "1s",
			MaxAttempts:     3,
		},
		Announcer: AnnouncerConfig{
			Enabled:    true,
			EmbedColor: 0xE67E22,
		},
	}
}

// DiscoverConfigFiles returns the default config file: config.toml next to the
// executable, then in the working directory
func DiscoverConfigFiles() ([]string, error) {
	candidates := []string{}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ConfigFileName))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, ConfigFileName))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return []string{candidate}, nil
		}
	}
	return nil, ErrMissingConfig
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		GetLogger().Warn().Err(err).Msg("Ignoring .env file")
	}

	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// loadDotEnv loads path into the environment. A missing file is not an error
// and values already in the environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if token := os.Getenv(envPrefix + "DISCORD_TOKEN"); token != "" {
		config.DiscordToken = token
	}
	if schedule := os.Getenv(envPrefix + "SCHEDULE"); schedule != "" {
		config.Schedule = schedule
	}

	// Storage configuration
	if badgerPath := os.Getenv(envPrefix + "BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv(envPrefix + "LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv(envPrefix + "LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Fetch configuration
	if timeout := os.Getenv(envPrefix + "FETCH_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Fetch.Timeout = timeout
		}
	}
	if concurrency := os.Getenv(envPrefix + "FETCH_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil && c > 0 {
			config.Fetch.Concurrency = c
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, logLevel string, badgerPath string) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
}

// ScheduleParser parses 6-field cron expressions with a leading seconds field
var ScheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidSchedule returns the configured schedule, or the default one when it
// cannot be parsed
func (c *Config) ValidSchedule(logger arbor.ILogger) string {
	if _, err := ScheduleParser.Parse(c.Schedule); err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("schedule", c.Schedule).Str("default", DefaultSchedule).Msg("Invalid schedule, using default")
		}
		return DefaultSchedule
	}
	return c.Schedule
}
