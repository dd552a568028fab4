package simulation

import (
	"fmt"

	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/population"
	"github.com/nvandessel/rabbitsim/internal/rng"
)

// seed fills an empty pool with the initial population.
//
// A population of exactly FounderPopulation is a founder pair: one female and
// one male, mature, at FounderAge and FounderSurvivalRate. Any other size is
// that many adults of random sex aged SeedAgeMin..SeedAgeMin+SeedAgeSpan-1.
//
// Adults enter the pool already mature, with their fecundity year starting at
// the age they were added. Females get their first litter target immediately.
func seed(p *population.Pool, s rng.Stream, cfg Config) error {
	if cfg.InitialPopulation == constants.FounderPopulation {
		for _, sex := range []population.Sex{population.Female, population.Male} {
			if err := addAdult(p, s, sex, constants.FounderAge, constants.FounderSurvivalRate); err != nil {
				return err
			}
		}
		return nil
	}

	for i := 0; i < cfg.InitialPopulation; i++ {
		age := constants.SeedAgeMin + s.Bounded(constants.SeedAgeSpan)
		sex := population.Female
		if s.Uniform01() >= 0.5 {
			sex = population.Male
		}
		if err := addAdult(p, s, sex, age, cfg.Params.AdultSurvivalRate); err != nil {
			return err
		}
	}
	return nil
}

func addAdult(p *population.Pool, s rng.Stream, sex population.Sex, age int, rate float64) error {
	idx, err := p.Add(population.Spec{Sex: sex, Mature: true, SurvivalRate: rate, Age: age})
	if err != nil {
		return fmt.Errorf("seeding initial population: %w", err)
	}
	if sex == population.Female {
		p.Agent(idx).LittersTarget = population.DrawLittersTarget(s)
	}
	return nil
}
