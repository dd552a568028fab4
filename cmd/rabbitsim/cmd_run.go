package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/logging"
	"github.com/nvandessel/rabbitsim/internal/montecarlo"
	"github.com/nvandessel/rabbitsim/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Monte Carlo batch and print aggregated statistics",
		Long: `Run a batch of independent simulations and aggregate their outcomes.

Parameters come from the built-in defaults, then ~/.rabbitsim/config.yaml,
then RABBITSIM_* environment variables, then flags.

Examples:
  rabbitsim run --runs 1000 --months 120 --population 2
  rabbitsim run --survival gaussian --save
  rabbitsim run --keep-series --save --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			root, _ := cmd.Flags().GetString("root")
			save, _ := cmd.Flags().GetBool("save")
			quiet, _ := cmd.Flags().GetBool("quiet")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := settings.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, closer := newLogger(cmd, settings)
			defer closer.Close()

			cfg := settings.Batch()
			applySimulationFlags(cmd, &cfg)
			if cmd.Flags().Changed("runs") {
				cfg.Runs, _ = cmd.Flags().GetInt("runs")
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers, _ = cmd.Flags().GetInt("workers")
			}
			if cmd.Flags().Changed("keep-series") {
				cfg.KeepSeries, _ = cmd.Flags().GetBool("keep-series")
			}
			// Percentiles need every result; saved batches keep their runs.
			percentiles, _ := cmd.Flags().GetBool("percentiles")
			cfg.KeepResults = save || percentiles || cfg.KeepSeries

			runLog := logging.NewRunLogger(store.DataDir(root), settings.Logging.Level)
			defer runLog.Close()

			opts := []montecarlo.Option{montecarlo.WithLogger(logger), montecarlo.WithRunLogger(runLog)}
			var bar *progressBar
			if !quiet && !jsonOut {
				bar = newProgressBar(cmd.ErrOrStderr())
				opts = append(opts, montecarlo.WithProgress(bar.update))
			}

			driver, err := montecarlo.New(cfg, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			batch, err := driver.Run(ctx)
			bar.finish()
			if err != nil {
				return fmt.Errorf("batch aborted after %d of %d runs: %w", driver.Done(), cfg.Runs, err)
			}

			view := batchView{Config: batch.Config, Workers: batch.Workers, Elapsed: batch.Elapsed, Report: batch.Report}
			if save {
				st, err := openStore(cmd.Context(), cmd, settings)
				if err != nil {
					return err
				}
				defer st.Close()
				if view.ID, err = st.SaveBatch(cmd.Context(), batch); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, view)
			}
			printReport(out, batch.Config, batch.Workers, batch.Elapsed, batch.Report)
			if view.ID != "" {
				fmt.Fprintf(out, "\nSaved batch %s\n", view.ID)
			}
			return nil
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().IntP("runs", "n", 100, "Number of independent runs")
	cmd.Flags().IntP("workers", "w", 0, "Worker goroutines (0 = GOMAXPROCS)")
	cmd.Flags().Bool("keep-series", false, "Record monthly series of every run (stored with --save)")
	cmd.Flags().Bool("percentiles", false, "Keep per-run results to report p5/p50/p95")
	cmd.Flags().Bool("save", false, "Store the batch in the project store")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print progress")

	return cmd
}

// progressBar prints run progress on one terminal line. A nil bar does nothing.
type progressBar struct {
	mu    sync.Mutex
	w     io.Writer
	last  time.Time
	start time.Time
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w, start: time.Now()}
}

const progressInterval = 100 * time.Millisecond

func (p *progressBar) update(done, total int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if done < total && now.Sub(p.last) < progressInterval {
		return
	}
	p.last = now
	pct := 100 * float64(done) / float64(total)
	fmt.Fprintf(p.w, "\r%s / %s runs (%.0f%%), started %s", humanize.Comma(int64(done)), humanize.Comma(int64(total)), pct, humanize.Time(p.start))
}

func (p *progressBar) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.last.IsZero() {
		fmt.Fprintln(p.w)
	}
}
