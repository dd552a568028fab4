package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/config"
	"github.com/nvandessel/rabbitsim/internal/logging"
	"github.com/nvandessel/rabbitsim/internal/store"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rabbitsim",
		Short: "Monte Carlo simulation of a rabbit population",
		Long: `rabbitsim simulates a rabbit population month by month and repeats the
simulation many times to estimate the distribution of outcomes.

Each run ages every rabbit, applies an age-dependent survival chance, lets
mature females breed up to their yearly litter target and counts births and
deaths. Batches of runs are aggregated into means, standard deviations and
95% confidence intervals, and can be stored, exported and plotted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory (the store lives in <root>/.rabbitsim)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.rabbitsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newTraceCmd(),
		newBatchesCmd(),
		newShowCmd(),
		newDeleteCmd(),
		newExportCmd(),
		newPlotCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// loadSettings loads the effective configuration for cmd: defaults, config
// file, environment, then the --log-level flag.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// newLogger builds the command logger on stderr, mirrored to the configured
// log file.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, io.Closer) {
	return logging.New(cfg.Logging.Level, cmd.ErrOrStderr(), cfg.LogFile())
}

// openStore opens the configured store, or <root>/.rabbitsim/rabbitsim.db.
func openStore(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		root, _ := cmd.Flags().GetString("root")
		path = store.DefaultDBPath(root)
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// openStoreFromFlags loads settings and opens the store in one step.
func openStoreFromFlags(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return openStore(cmd.Context(), cmd, cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
