package main

import (
	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/montecarlo"
)

// addSimulationFlags registers the batch parameters shared by run and trace.
// Defaults shown are the built-in ones; config file and environment values
// apply unless a flag is given explicitly.
func addSimulationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("months", "m", constants.DefaultMonths, "Months to simulate per run")
	f.IntP("population", "p", constants.DefaultInitialPopulation, "Rabbits at month 0 (2 starts from a founding pair)")
	f.Uint64("seed", constants.DefaultBaseSeed, "Base seed; run i uses a stream derived from (seed, i)")
	f.String("survival", string(constants.SurvivalStatic), "Survival model: static, gaussian or exponential")
	f.String("litter-policy", string(constants.LitterReset), "Yearly litter counter: reset or carry")
	f.Float64("initial-rate", constants.InitialSurvivalRate, "Monthly survival percentage of immature rabbits")
	f.Float64("adult-rate", constants.AdultSurvivalRate, "Monthly survival percentage of mature rabbits")
	f.Float64("stddev", constants.GaussianStdDev, "Standard deviation of the gaussian survival model")
	f.Int("max-capacity", 0, "Per-run agent cap; a run growing past it fails (0 = default, -1 = none)")
}

// applySimulationFlags overrides cfg with the flags set on the command line.
func applySimulationFlags(cmd *cobra.Command, cfg *montecarlo.Config) {
	f := cmd.Flags()
	if f.Changed("months") {
		cfg.Months, _ = f.GetInt("months")
	}
	if f.Changed("population") {
		cfg.InitialPopulation, _ = f.GetInt("population")
	}
	if f.Changed("seed") {
		cfg.BaseSeed, _ = f.GetUint64("seed")
	}
	if f.Changed("survival") {
		s, _ := f.GetString("survival")
		cfg.Survival = constants.SurvivalMethod(s)
	}
	if f.Changed("litter-policy") {
		s, _ := f.GetString("litter-policy")
		cfg.Litters = constants.LitterPolicy(s)
	}
	if f.Changed("initial-rate") {
		cfg.InitialSurvivalRate, _ = f.GetFloat64("initial-rate")
	}
	if f.Changed("adult-rate") {
		cfg.AdultSurvivalRate, _ = f.GetFloat64("adult-rate")
	}
	if f.Changed("stddev") {
		cfg.GaussianStdDev, _ = f.GetFloat64("stddev")
	}
	if f.Changed("max-capacity") {
		cfg.Pool.MaxCapacity, _ = f.GetInt("max-capacity")
	}
}
