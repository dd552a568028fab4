package simulation

import (
	"fmt"
	"time"

	"github.com/nvandessel/rabbitsim/internal/population"
	"github.com/nvandessel/rabbitsim/internal/rng"
)

// Config describes a single run.
type Config struct {
	Months            int
	InitialPopulation int
	BaseSeed          uint64

	// Params is the model. A nil Strategy selects population.DefaultParams.
	Params population.Params
	Pool   population.PoolOptions

	// KeepSeries records one MonthStats row per simulated month.
	KeepSeries bool
}

// Validate rejects configurations no run can start from.
func (c Config) Validate() error {
	if c.Months <= 0 {
		return fmt.Errorf("months must be > 0, got %d", c.Months)
	}
	if c.InitialPopulation <= 0 {
		return fmt.Errorf("initial population must be > 0, got %d", c.InitialPopulation)
	}
	if c.Params.Strategy != nil {
		if c.Params.InitialSurvivalRate < 0 || c.Params.InitialSurvivalRate > 100 {
			return fmt.Errorf("initial survival rate must be in [0, 100], got %v", c.Params.InitialSurvivalRate)
		}
		if c.Params.AdultSurvivalRate < 0 || c.Params.AdultSurvivalRate > 100 {
			return fmt.Errorf("adult survival rate must be in [0, 100], got %v", c.Params.AdultSurvivalRate)
		}
		if c.Params.Litters != "" && !c.Params.Litters.Valid() {
			return fmt.Errorf("unknown litter policy %q", c.Params.Litters)
		}
	}
	return nil
}

// Simulator executes runs of one Config. It holds no per-run state and is safe
// for concurrent use.
type Simulator struct {
	cfg Config
}

// New validates cfg and returns a Simulator bound to it.
func New(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Params.Strategy == nil {
		cfg.Params = population.DefaultParams(nil)
	}
	return &Simulator{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config { return s.cfg }

// Run executes run index with its own stream derived from the base seed.
func (s *Simulator) Run(index int) Result {
	return s.RunStream(index, rng.New(s.cfg.BaseSeed, uint64(index)))
}

// RunStream executes run index drawing from stream.
func (s *Simulator) RunStream(index int, stream rng.Stream) Result {
	start := time.Now()
	res := Result{RunIndex: index, Status: StatusCompleted}

	pool := population.NewPool(s.cfg.Pool)
	defer pool.Reset()

	if err := seed(pool, stream, s.cfg); err != nil {
		return s.finish(res, pool, start, err)
	}

	res.Peak = pool.Alive()
	if s.cfg.KeepSeries {
		res.Series = make([]MonthStats, 0, s.cfg.Months)
	}

	for m := 1; m <= s.cfg.Months; m++ {
		tally, err := population.Advance(pool, stream, s.cfg.Params)
		res.TotalBirths += int64(tally.Births)
		if err != nil {
			return s.finish(res, pool, start, fmt.Errorf("month %d: %w", m, err))
		}

		alive := pool.Alive()
		res.MonthsSimulated = m
		res.PopulationMonths += int64(alive)
		if alive > res.Peak {
			res.Peak, res.PeakMonth = alive, m
		}
		if m == 1 || alive < res.Trough {
			res.Trough, res.TroughMonth = alive, m
		}

		if s.cfg.KeepSeries {
			females, males := pool.Census()
			res.Series = append(res.Series, MonthStats{
				Month:   m,
				Alive:   alive,
				Males:   males,
				Females: females,
				Births:  tally.Births,
				Deaths:  tally.Deaths,
			})
		}

		if alive == 0 {
			res.ExtinctionMonth = m
			break
		}
	}

	return s.finish(res, pool, start, nil)
}

// finish fills the final counts from the pool and marks failures.
func (s *Simulator) finish(res Result, pool *population.Pool, start time.Time, err error) Result {
	res.FinalAlive = pool.Alive()
	res.FinalFemales, res.FinalMales = pool.Census()
	res.TotalDeaths = int64(pool.Deaths())
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
	}
	return res
}
