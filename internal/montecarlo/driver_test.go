package montecarlo

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/logging"
	"github.com/nvandessel/rabbitsim/internal/population"
	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/stats"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Months = 36
	cfg.InitialPopulation = 60
	cfg.Runs = 24
	cfg.BaseSeed = 99
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero months", func(c *Config) { c.Months = 0 }},
		{"zero population", func(c *Config) { c.InitialPopulation = 0 }},
		{"zero runs", func(c *Config) { c.Runs = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"unknown survival", func(c *Config) { c.Survival = "logistic" }},
		{"unknown litter policy", func(c *Config) { c.Litters = "forever" }},
		{"initial rate too high", func(c *Config) { c.InitialSurvivalRate = 101 }},
		{"adult rate negative", func(c *Config) { c.AdultSurvivalRate = -1 }},
		{"negative stddev", func(c *Config) { c.GaussianStdDev = -0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestConfig_Params(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Survival = constants.SurvivalGaussian
	cfg.GaussianStdDev = 2.5
	cfg.Litters = constants.LitterCarry
	cfg.AdultSurvivalRate = 70

	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if p.Strategy.Method() != constants.SurvivalGaussian {
		t.Errorf("Strategy = %v, want gaussian", p.Strategy.Method())
	}
	if p.Litters != constants.LitterCarry || p.AdultSurvivalRate != 70 {
		t.Errorf("Params = %+v", p)
	}
}

func runBatch(t *testing.T, cfg Config, opts ...Option) *Batch {
	t.Helper()
	d, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return b
}

func stripDurations(results []simulation.Result) {
	for i := range results {
		results[i].Duration = 0
	}
}

func TestDriver_IndependentOfWorkerCount(t *testing.T) {
	base := smallConfig()
	base.KeepResults = true
	base.Workers = 1
	want := runBatch(t, base)
	stripDurations(want.Results)

	for _, workers := range []int{2, 3, 8, 64} {
		cfg := base
		cfg.Workers = workers
		got := runBatch(t, cfg)
		stripDurations(got.Results)

		if !reflect.DeepEqual(got.Report, want.Report) {
			t.Errorf("workers=%d: report differs\n got  %+v\n want %+v", workers, got.Report, want.Report)
		}
		if !reflect.DeepEqual(got.Results, want.Results) {
			t.Errorf("workers=%d: per-run results differ", workers)
		}
	}
}

func TestDriver_MatchesSequentialRuns(t *testing.T) {
	cfg := smallConfig()
	cfg.Workers = 4
	batch := runBatch(t, cfg)

	simCfg, err := cfg.Simulation()
	if err != nil {
		t.Fatalf("Simulation() error = %v", err)
	}
	sim, err := simulation.New(simCfg)
	if err != nil {
		t.Fatalf("simulation.New() error = %v", err)
	}
	acc := stats.NewAccumulator()
	for i := 0; i < cfg.Runs; i++ {
		acc.Absorb(sim.Run(i))
	}

	if want := acc.Report(); !reflect.DeepEqual(batch.Report, want) {
		t.Errorf("driver report differs from sequential absorption\n got  %+v\n want %+v", batch.Report, want)
	}
	if batch.Results != nil {
		t.Error("Results kept without KeepResults")
	}
}

func TestDriver_Progress(t *testing.T) {
	cfg := smallConfig()
	cfg.Workers = 3

	var calls, maxDone atomic.Int64
	d, err := New(cfg, WithProgress(func(done, total int) {
		calls.Add(1)
		if total != cfg.Runs {
			t.Errorf("progress total = %d, want %d", total, cfg.Runs)
		}
		for {
			cur := maxDone.Load()
			if int64(done) <= cur || maxDone.CompareAndSwap(cur, int64(done)) {
				break
			}
		}
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if calls.Load() != int64(cfg.Runs) || maxDone.Load() != int64(cfg.Runs) {
		t.Errorf("progress calls = %d, max done = %d, want %d", calls.Load(), maxDone.Load(), cfg.Runs)
	}
	if d.Done() != cfg.Runs {
		t.Errorf("Done() = %d, want %d", d.Done(), cfg.Runs)
	}
}

func TestDriver_WorkersClampedToRuns(t *testing.T) {
	cfg := smallConfig()
	cfg.Runs = 2
	cfg.Workers = 16
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.Workers() != 2 {
		t.Errorf("Workers() = %d, want 2", d.Workers())
	}
}

func TestDriver_Cancelled(t *testing.T) {
	d, err := New(smallConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if b != nil {
		t.Error("cancelled batch should be nil")
	}
}

func TestDriver_FailedRunsReported(t *testing.T) {
	cfg := smallConfig()
	cfg.Runs = 5
	cfg.AdultSurvivalRate = 100
	cfg.InitialSurvivalRate = 100
	cfg.Pool = population.PoolOptions{InitialCapacity: 64, MaxCapacity: 80}

	var logBuf bytes.Buffer
	batch := runBatch(t, cfg, WithLogger(logging.NewLogger("info", &logBuf)))

	if batch.Report.Failed != 5 || batch.Report.Completed != 0 {
		t.Errorf("Report = %+v, want 5 failed runs", batch.Report)
	}
	if !strings.Contains(logBuf.String(), "run failed") {
		t.Errorf("expected failure log, got %q", logBuf.String())
	}
}

func TestDriver_KeepSeriesAndPercentiles(t *testing.T) {
	cfg := smallConfig()
	cfg.KeepSeries = true
	batch := runBatch(t, cfg)

	if len(batch.Results) != cfg.Runs {
		t.Fatalf("len(Results) = %d, want %d", len(batch.Results), cfg.Runs)
	}
	for i, r := range batch.Results {
		if r.RunIndex != i {
			t.Errorf("Results[%d].RunIndex = %d", i, r.RunIndex)
		}
		if len(r.Series) != r.MonthsSimulated {
			t.Errorf("run %d: %d series rows for %d months", i, len(r.Series), r.MonthsSimulated)
		}
	}
	if batch.Report.Completed > 0 && batch.Report.Percentiles == nil {
		t.Error("Percentiles missing with kept results")
	}
}

func TestDriver_RunLogger(t *testing.T) {
	dir := t.TempDir()
	rl := logging.NewRunLogger(dir, "debug")
	defer rl.Close()

	cfg := smallConfig()
	cfg.Runs = 6
	runBatch(t, cfg, WithRunLogger(rl))

	data, err := os.ReadFile(filepath.Join(dir, logging.RunLogFile))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 6 {
		t.Errorf("run log has %d lines, want 6", lines)
	}
}

func TestDriver_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full ensemble skipped in short mode")
	}

	cfg := DefaultConfig()
	cfg.BaseSeed = 1234997890123456700
	cfg.Months = 240
	cfg.InitialPopulation = 100000
	cfg.Runs = 100
	batch := runBatch(t, cfg)

	r := batch.Report
	if r.Completed+r.Failed != 100 {
		t.Fatalf("completed %d + failed %d != 100", r.Completed, r.Failed)
	}
	for name, s := range map[string]stats.Summary{"final alive": r.FinalAlive, "total deaths": r.TotalDeaths} {
		if math.IsNaN(s.Mean) || math.IsInf(s.Mean, 0) || s.Mean < 0 {
			t.Errorf("%s mean = %v, want finite and non-negative", name, s.Mean)
		}
		if math.IsNaN(s.SD) || s.SD < 0 {
			t.Errorf("%s sd = %v", name, s.SD)
		}
	}
	if r.ExtinctionRate < 0 || r.ExtinctionRate > 100 {
		t.Errorf("ExtinctionRate = %v, want within [0, 100]", r.ExtinctionRate)
	}
}
