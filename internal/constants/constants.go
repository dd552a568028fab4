// Package constants provides named constants used throughout rabbitsim.
// This centralizes the model's magic numbers so the population, simulation
// and config packages agree on them.
package constants

// Survival rates, expressed as monthly survival percentages.
const (
	// InitialSurvivalRate is the base rate for newborn and immature rabbits.
	InitialSurvivalRate = 35.0

	// AdultSurvivalRate is the base rate once a rabbit has matured.
	AdultSurvivalRate = 60.0

	// FounderSurvivalRate is the rate given to the two founders at month 0.
	FounderSurvivalRate = 100.0

	// MaxSurvivalRate bounds every effective rate.
	MaxSurvivalRate = 100.0

	// GaussianStdDev is the standard deviation of the Gaussian perturbation.
	GaussianStdDev = 5.0
)

// Ageing constants, in months.
const (
	// SeniorAge is the age from which the yearly senior penalty applies.
	SeniorAge = 120

	// SeniorPenalty is subtracted from the base rate for every full year past SeniorAge.
	SeniorPenalty = 10.0

	// MonthsPerYear is the length of one fecundity cycle.
	MonthsPerYear = 12

	// MaturityMinAge is the youngest age at which maturity can be reached.
	MaturityMinAge = 5

	// MaturityDivisor turns age into the monthly maturity chance (age/8).
	MaturityDivisor = 8.0
)

// Population seeding constants.
const (
	// FounderPopulation is the initial population size that selects the
	// two-founder start instead of random adults.
	FounderPopulation = 2

	// FounderAge is the age of both founders.
	FounderAge = 9

	// SeedAgeMin and SeedAgeSpan describe the uniform [10,19] age of seeded adults.
	SeedAgeMin  = 10
	SeedAgeSpan = 10
)

// Reproduction constants.
const (
	// LitterMinSize is the smallest litter.
	LitterMinSize = 3

	// LitterSizeSpread is the number of distinct litter sizes (3..6).
	LitterSizeSpread = 4
)

// Pool sizing constants.
const (
	// DefaultInitialCapacity is the first allocation of an empty pool.
	DefaultInitialCapacity = 1 << 16

	// DefaultMaxCapacity caps pool growth so a runaway run fails instead of
	// exhausting memory. A negative PoolOptions.MaxCapacity disables it.
	DefaultMaxCapacity = 1 << 27
)

// Monte Carlo defaults.
const (
	DefaultMonths            = 240
	DefaultInitialPopulation = 100000
	DefaultRuns              = 100
	DefaultBaseSeed          = uint64(1234997890123456700)

	// ConfidenceZ is the z-score of a two-sided 95% confidence interval.
	ConfidenceZ = 1.96
)

// MCP tool limits keep a single tool call from tying up the server.
const (
	MaxToolRuns       = 1000
	MaxToolMonths     = 600
	MaxToolPopulation = 1_000_000

	// MaxToolCapacity caps the agent pool of a tool-driven run.
	MaxToolCapacity = 1 << 24
)
