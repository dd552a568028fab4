package population

import (
	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/survival"
)

// Params are the model parameters the monthly update reads.
type Params struct {
	Strategy survival.Strategy
	Litters  constants.LitterPolicy

	InitialSurvivalRate float64
	AdultSurvivalRate   float64
}

// DefaultParams returns the standard model with the given strategy.
func DefaultParams(strategy survival.Strategy) Params {
	if strategy == nil {
		strategy = survival.Static{}
	}
	return Params{
		Strategy:            strategy,
		Litters:             constants.LitterReset,
		InitialSurvivalRate: constants.InitialSurvivalRate,
		AdultSurvivalRate:   constants.AdultSurvivalRate,
	}
}

// BaseRate is the survival rate an agent is entitled to before the strategy
// perturbs it: the initial rate while immature, the adult rate once mature,
// minus SeniorPenalty per full year past SeniorAge, floored at zero.
func (p Params) BaseRate(a *Agent) float64 {
	base := p.InitialSurvivalRate
	if a.Mature {
		base = p.AdultSurvivalRate
	}
	if a.Age >= constants.SeniorAge {
		years := (a.Age - constants.SeniorAge) / constants.MonthsPerYear
		base -= constants.SeniorPenalty * float64(years)
	}
	if base < 0 {
		base = 0
	}
	return base
}
