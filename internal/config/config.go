// Package config provides unified configuration loading for rabbitsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/rabbitsim/internal/backup"
	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/logging"
	"github.com/nvandessel/rabbitsim/internal/montecarlo"
	"github.com/nvandessel/rabbitsim/internal/population"
)

// Config contains all rabbitsim configuration settings.
type Config struct {
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Model      ModelConfig      `json:"model" yaml:"model"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Backup     BackupConfig     `json:"backup" yaml:"backup"`
}

// SimulationConfig describes the default batch.
type SimulationConfig struct {
	Months            int    `json:"months" yaml:"months"`
	InitialPopulation int    `json:"initial_population" yaml:"initial_population"`
	Runs              int    `json:"runs" yaml:"runs"`
	Seed              uint64 `json:"seed" yaml:"seed"`

	// Workers is the worker pool size; 0 uses every available CPU.
	Workers int `json:"workers" yaml:"workers"`

	// SurvivalMethod is "static", "gaussian" or "exponential".
	SurvivalMethod string `json:"survival_method" yaml:"survival_method"`

	// LitterPolicy is "reset" (yearly counter restarts) or "carry".
	LitterPolicy string `json:"litter_policy" yaml:"litter_policy"`

	// KeepSeries records the monthly series of every run.
	KeepSeries bool `json:"keep_series" yaml:"keep_series"`

	// InitialCapacity and MaxCapacity size each run's agent pool. A run that
	// would grow past MaxCapacity fails. 0 selects the defaults.
	InitialCapacity int `json:"initial_capacity,omitempty" yaml:"initial_capacity,omitempty"`
	MaxCapacity     int `json:"max_capacity,omitempty" yaml:"max_capacity,omitempty"`
}

// ModelConfig holds the model's tunable rates.
type ModelConfig struct {
	InitialSurvivalRate float64 `json:"initial_survival_rate" yaml:"initial_survival_rate"`
	AdultSurvivalRate   float64 `json:"adult_survival_rate" yaml:"adult_survival_rate"`
	GaussianStdDev      float64 `json:"gaussian_stddev" yaml:"gaussian_stddev"`
}

// LoggingConfig configures rabbitsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables run tracing to .rabbitsim/runs.jsonl.
	Level string `json:"level" yaml:"level"`

	// File mirrors the log to a size-rotated file when set.
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// StoreConfig locates the results database.
type StoreConfig struct {
	// Path of the SQLite database. Empty means <root>/.rabbitsim/rabbitsim.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// BackupConfig configures store archives.
type BackupConfig struct {
	// Dir holds generated archives. Empty means <root>/.rabbitsim/backups.
	Dir       string          `json:"dir,omitempty" yaml:"dir,omitempty"`
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig prunes old archives after each backup. An archive is kept
// if any configured rule keeps it.
type RetentionConfig struct {
	MaxCount     int    `json:"max_count" yaml:"max_count"`
	MaxAge       string `json:"max_age,omitempty" yaml:"max_age,omitempty"`               // e.g. "30d", "2w", "720h"
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"` // e.g. "500MB"
}

// Default returns a Config with the standard batch.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Months:            constants.DefaultMonths,
			InitialPopulation: constants.DefaultInitialPopulation,
			Runs:              constants.DefaultRuns,
			Seed:              constants.DefaultBaseSeed,
			SurvivalMethod:    string(constants.SurvivalStatic),
			LitterPolicy:      string(constants.LitterReset),
		},
		Model: ModelConfig{
			InitialSurvivalRate: constants.InitialSurvivalRate,
			AdultSurvivalRate:   constants.AdultSurvivalRate,
			GaussianStdDev:      constants.GaussianStdDev,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Backup: BackupConfig{
			Retention: RetentionConfig{MaxCount: 10},
		},
	}
}

// DefaultPath is ~/.rabbitsim/config.yaml, or "" if there is no home directory.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".rabbitsim", "config.yaml")
}

// Load loads configuration from path, or from DefaultPath when path is empty,
// then applies environment variables.
// Order: defaults -> config file -> environment variables.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		_, statErr := os.Stat(path)
		if statErr == nil || explicit {
			fileConfig, err := LoadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Unset fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Logging.File = expandEnvVars(config.Logging.File)
	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Backup.Dir = expandEnvVars(config.Backup.Dir)
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}
	if c.Backup.Retention.MaxCount < 0 {
		return fmt.Errorf("backup max_count must be non-negative, got %d", c.Backup.Retention.MaxCount)
	}
	if _, err := c.RetentionPolicy(); err != nil {
		return fmt.Errorf("backup retention: %w", err)
	}
	if c.Simulation.InitialCapacity < 0 {
		return fmt.Errorf("initial_capacity must be non-negative, got %d", c.Simulation.InitialCapacity)
	}
	return c.Batch().Validate()
}

// Batch converts the configuration into a Monte Carlo batch configuration.
func (c *Config) Batch() montecarlo.Config {
	return montecarlo.Config{
		Months:              c.Simulation.Months,
		InitialPopulation:   c.Simulation.InitialPopulation,
		Runs:                c.Simulation.Runs,
		BaseSeed:            c.Simulation.Seed,
		Workers:             c.Simulation.Workers,
		Survival:            constants.SurvivalMethod(c.Simulation.SurvivalMethod),
		Litters:             constants.LitterPolicy(c.Simulation.LitterPolicy),
		InitialSurvivalRate: c.Model.InitialSurvivalRate,
		AdultSurvivalRate:   c.Model.AdultSurvivalRate,
		GaussianStdDev:      c.Model.GaussianStdDev,
		KeepSeries:          c.Simulation.KeepSeries,
		Pool: population.PoolOptions{
			InitialCapacity: c.Simulation.InitialCapacity,
			MaxCapacity:     c.Simulation.MaxCapacity,
		},
	}
}

// LogFile returns the rotating file options for the logger.
func (c *Config) LogFile() logging.FileOptions {
	return logging.FileOptions{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// RetentionPolicy builds the archive retention policy. It is nil when no rule
// is configured.
func (c *Config) RetentionPolicy() (backup.RetentionPolicy, error) {
	r := c.Backup.Retention
	return backup.NewPolicy(r.MaxCount, r.MaxAge, r.MaxTotalSize)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unlike file values, a malformed number in the environment is an error.
func applyEnvOverrides(config *Config) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"RABBITSIM_MONTHS", &config.Simulation.Months},
		{"RABBITSIM_POPULATION", &config.Simulation.InitialPopulation},
		{"RABBITSIM_RUNS", &config.Simulation.Runs},
		{"RABBITSIM_WORKERS", &config.Simulation.Workers},
	}
	for _, e := range ints {
		if v := os.Getenv(e.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.name, err)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("RABBITSIM_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("RABBITSIM_SEED: %w", err)
		}
		config.Simulation.Seed = n
	}

	if v := os.Getenv("RABBITSIM_SURVIVAL"); v != "" {
		config.Simulation.SurvivalMethod = strings.ToLower(v)
	}
	if v := os.Getenv("RABBITSIM_LITTER_POLICY"); v != "" {
		config.Simulation.LitterPolicy = strings.ToLower(v)
	}
	if v := os.Getenv("RABBITSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("RABBITSIM_LOG_FILE"); v != "" {
		config.Logging.File = v
	}
	if v := os.Getenv("RABBITSIM_DB"); v != "" {
		config.Store.Path = v
	}
	if v := os.Getenv("RABBITSIM_BACKUP_DIR"); v != "" {
		config.Backup.Dir = v
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
