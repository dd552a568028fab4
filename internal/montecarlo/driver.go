// Package montecarlo executes batches of independent runs on a fixed worker
// pool and reduces them into a statistics report.
//
// Workers claim run indices from a shared counter and absorb each result into
// their own accumulator; the partial accumulators are merged once all workers
// have finished. Because merging is exact, the report does not depend on the
// number of workers or on scheduling.
package montecarlo

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/rabbitsim/internal/logging"
	"github.com/nvandessel/rabbitsim/internal/rng"
	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/stats"
)

// ProgressFunc is called after every completed run with the number of runs
// done so far. It is called from worker goroutines and must be safe for
// concurrent use.
type ProgressFunc func(done, total int)

// Driver runs one batch.
type Driver struct {
	cfg     Config
	sim     *simulation.Simulator
	workers int

	logger   *slog.Logger
	runLog   *logging.RunLogger
	progress ProgressFunc

	done atomic.Int64
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithRunLogger traces every run to a JSONL file.
func WithRunLogger(rl *logging.RunLogger) Option {
	return func(d *Driver) { d.runLog = rl }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Driver) { d.progress = fn }
}

// New validates cfg and prepares a driver.
func New(cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.KeepSeries {
		cfg.KeepResults = true
	}

	simCfg, err := cfg.Simulation()
	if err != nil {
		return nil, err
	}
	sim, err := simulation.New(simCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, cfg.Runs)

	d := &Driver{
		cfg:     cfg,
		sim:     sim,
		workers: workers,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Workers is the effective worker count.
func (d *Driver) Workers() int { return d.workers }

// Done is the number of runs completed so far.
func (d *Driver) Done() int { return int(d.done.Load()) }

// Batch is the outcome of a driver run.
type Batch struct {
	Config  Config        `json:"config"`
	Workers int           `json:"workers"`
	Report  stats.Report  `json:"report"`
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed_ns"`

	// Results is indexed by run index. Only set when KeepResults is on.
	Results []simulation.Result `json:"results,omitempty"`
}

// Run executes every run of the batch. Cancelling ctx stops workers from
// claiming new runs; runs already in progress finish first. A cancelled batch
// returns no Batch.
func (d *Driver) Run(ctx context.Context) (*Batch, error) {
	started := time.Now()
	total := d.cfg.Runs
	d.done.Store(0)

	d.logger.Info("batch started",
		"runs", total,
		"months", d.cfg.Months,
		"population", d.cfg.InitialPopulation,
		"workers", d.workers,
		"seed", d.cfg.BaseSeed)

	var results []simulation.Result
	if d.cfg.KeepResults {
		results = make([]simulation.Result, total)
	}

	partials := make([]*stats.Accumulator, d.workers)
	var next atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := range partials {
		acc := stats.NewAccumulator()
		partials[w] = acc
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				idx := int(next.Add(1) - 1)
				if idx >= total {
					return nil
				}

				res := d.sim.Run(idx)
				acc.Absorb(res)
				if results != nil {
					results[idx] = res
				}
				d.record(ctx, w, res)
			}
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Warn("batch cancelled", "done", d.Done(), "runs", total, "error", err)
		return nil, fmt.Errorf("batch cancelled after %d of %d runs: %w", d.Done(), total, err)
	}

	merged := stats.NewAccumulator()
	for _, acc := range partials {
		merged.Merge(acc)
	}
	report := merged.Report()
	if results != nil {
		report.Percentiles = stats.PercentilesOf(results)
	}

	batch := &Batch{
		Config:  d.cfg,
		Workers: d.workers,
		Report:  report,
		Started: started,
		Elapsed: time.Since(started),
		Results: results,
	}

	d.logger.Info("batch finished",
		"completed", report.Completed,
		"failed", report.Failed,
		"extinctions", report.Extinctions,
		"elapsed", batch.Elapsed.Round(time.Millisecond))
	return batch, nil
}

// record publishes a finished run: progress, failure logging and tracing.
func (d *Driver) record(ctx context.Context, worker int, res simulation.Result) {
	done := int(d.done.Add(1))
	if d.progress != nil {
		d.progress(done, d.cfg.Runs)
	}

	if res.Failed() {
		d.logger.Warn("run failed", "run", res.RunIndex, "month", res.MonthsSimulated, "error", res.Error)
	} else {
		d.logger.Log(ctx, logging.LevelTrace, "run finished",
			"run", res.RunIndex,
			"alive", res.FinalAlive,
			"deaths", res.TotalDeaths,
			"extinction_month", res.ExtinctionMonth)
	}

	hi, lo := rng.Derive(d.cfg.BaseSeed, uint64(res.RunIndex))
	d.runLog.Log(map[string]any{
		"run":              res.RunIndex,
		"worker":           worker,
		"seed_hi":          hi,
		"seed_lo":          lo,
		"status":           res.Status,
		"error":            res.Error,
		"final_alive":      res.FinalAlive,
		"total_deaths":     res.TotalDeaths,
		"total_births":     res.TotalBirths,
		"peak":             res.Peak,
		"extinction_month": res.ExtinctionMonth,
		"months_simulated": res.MonthsSimulated,
		"duration_ms":      res.Duration.Milliseconds(),
	})
}
