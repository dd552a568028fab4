package montecarlo

import (
	"errors"
	"fmt"

	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/population"
	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/survival"
)

// ErrInvalidConfig is wrapped by every configuration rejected by Validate.
var ErrInvalidConfig = errors.New("invalid batch configuration")

// Config describes a Monte Carlo batch.
type Config struct {
	Months            int    `json:"months"`
	InitialPopulation int    `json:"initial_population"`
	Runs              int    `json:"runs"`
	BaseSeed          uint64 `json:"base_seed"`

	// Workers is the size of the worker pool; 0 uses GOMAXPROCS.
	Workers int `json:"workers"`

	Survival constants.SurvivalMethod `json:"survival_method"`
	Litters  constants.LitterPolicy   `json:"litter_policy"`

	InitialSurvivalRate float64 `json:"initial_survival_rate"`
	AdultSurvivalRate   float64 `json:"adult_survival_rate"`
	GaussianStdDev      float64 `json:"gaussian_stddev"`

	// KeepResults keeps every run's Result in the batch.
	KeepResults bool `json:"keep_results"`
	// KeepSeries records monthly series; it implies KeepResults.
	KeepSeries bool `json:"keep_series"`

	Pool population.PoolOptions `json:"-"`
}

// DefaultConfig returns the standard batch.
func DefaultConfig() Config {
	return Config{
		Months:              constants.DefaultMonths,
		InitialPopulation:   constants.DefaultInitialPopulation,
		Runs:                constants.DefaultRuns,
		BaseSeed:            constants.DefaultBaseSeed,
		Survival:            constants.SurvivalStatic,
		Litters:             constants.LitterReset,
		InitialSurvivalRate: constants.InitialSurvivalRate,
		AdultSurvivalRate:   constants.AdultSurvivalRate,
		GaussianStdDev:      constants.GaussianStdDev,
	}
}

// Validate checks every field before any run starts.
func (c Config) Validate() error {
	switch {
	case c.Months <= 0:
		return invalid("months must be > 0, got %d", c.Months)
	case c.InitialPopulation <= 0:
		return invalid("initial population must be > 0, got %d", c.InitialPopulation)
	case c.Runs <= 0:
		return invalid("runs must be > 0, got %d", c.Runs)
	case c.Workers < 0:
		return invalid("workers must be >= 0, got %d", c.Workers)
	case c.Survival != "" && !c.Survival.Valid():
		return invalid("unknown survival method %q (valid: static, gaussian, exponential)", c.Survival)
	case c.Litters != "" && !c.Litters.Valid():
		return invalid("unknown litter policy %q (valid: reset, carry)", c.Litters)
	case c.InitialSurvivalRate < 0 || c.InitialSurvivalRate > constants.MaxSurvivalRate:
		return invalid("initial survival rate must be in [0, 100], got %v", c.InitialSurvivalRate)
	case c.AdultSurvivalRate < 0 || c.AdultSurvivalRate > constants.MaxSurvivalRate:
		return invalid("adult survival rate must be in [0, 100], got %v", c.AdultSurvivalRate)
	case c.GaussianStdDev < 0:
		return invalid("gaussian stddev must be >= 0, got %v", c.GaussianStdDev)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Params builds the model parameters the runs share.
func (c Config) Params() (population.Params, error) {
	strategy, err := survival.New(c.Survival)
	if err != nil {
		return population.Params{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if g, ok := strategy.(survival.Gaussian); ok && c.GaussianStdDev > 0 {
		g.StdDev = c.GaussianStdDev
		strategy = g
	}

	params := population.DefaultParams(strategy)
	params.InitialSurvivalRate = c.InitialSurvivalRate
	params.AdultSurvivalRate = c.AdultSurvivalRate
	if c.Litters != "" {
		params.Litters = c.Litters
	}
	return params, nil
}

// Simulation returns the per-run configuration.
func (c Config) Simulation() (simulation.Config, error) {
	params, err := c.Params()
	if err != nil {
		return simulation.Config{}, err
	}
	return simulation.Config{
		Months:            c.Months,
		InitialPopulation: c.InitialPopulation,
		BaseSeed:          c.BaseSeed,
		Params:            params,
		Pool:              c.Pool,
		KeepSeries:        c.KeepSeries,
	}, nil
}
