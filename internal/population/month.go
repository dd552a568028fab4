package population

import (
	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/rng"
)

// Tally is what one month did to the pool.
type Tally struct {
	Births int
	Deaths int
}

// Advance applies one month to every live agent and then inserts the month's
// newborns. Only the slots in use when the month starts are visited, so a
// newborn is never aged in the month it is born.
//
// If inserting a newborn fails the error is returned together with the tally
// so far; the pool is still consistent but the month is incomplete.
func Advance(p *Pool, s rng.Stream, params Params) (Tally, error) {
	var t Tally
	newborns := 0

	n := p.count
	for i := 0; i < n; i++ {
		a := &p.agents[i]
		if !a.Alive {
			continue
		}

		a.Age++

		if !survives(a, s) {
			p.Kill(i)
			t.Deaths++
			continue
		}

		refreshSurvivalRate(a, s, params)
		checkMaturity(a, s)
		refreshFecundity(a, s, params.Litters)
		newborns += giveBirth(a, s)
		checkPregnancy(a, s)
	}

	for j := 0; j < newborns; j++ {
		sex := Female
		if s.Uniform01() >= 0.5 {
			sex = Male
		}
		if _, err := p.Add(Spec{Sex: sex, SurvivalRate: params.InitialSurvivalRate}); err != nil {
			return t, err
		}
		t.Births++
	}
	return t, nil
}

// survives runs the monthly survival check. A memoized pass short-circuits.
func survives(a *Agent, s rng.Stream) bool {
	if a.SurvivalMemo {
		return true
	}
	if s.Uniform01()*100 > a.SurvivalRate {
		return false
	}
	a.SurvivalMemo = true
	return true
}

// refreshSurvivalRate recomputes next month's rate and clears the memo so the
// next check is drawn again.
func refreshSurvivalRate(a *Agent, s rng.Stream, params Params) {
	a.SurvivalMemo = false
	a.SurvivalRate = params.Strategy.EffectiveRate(params.BaseRate(a), s)
}

func checkMaturity(a *Agent, s rng.Stream) {
	if a.Mature || a.Age < constants.MaturityMinAge {
		return
	}
	chance := float64(a.Age) / constants.MaturityDivisor
	if s.Uniform01() <= chance {
		a.Mature = true
		a.MaturityAge = a.Age
	}
}

// refreshFecundity draws a new yearly litter target on every anniversary of
// maturity, including the month maturity is reached.
func refreshFecundity(a *Agent, s rng.Stream, policy constants.LitterPolicy) {
	if !a.bearsLitters() || a.yearPosition(constants.MonthsPerYear) != 0 {
		return
	}
	a.LittersTarget = DrawLittersTarget(s)
	if policy != constants.LitterCarry {
		a.LittersSoFar = 0
	}
}

// giveBirth delivers a pending litter and returns its size.
func giveBirth(a *Agent, s rng.Stream) int {
	if !a.Pregnant {
		return 0
	}
	a.Pregnant = false
	a.LittersSoFar++
	return constants.LitterMinSize + s.Bounded(constants.LitterSizeSpread)
}

// checkPregnancy spreads the remaining litters of the year evenly over the
// remaining months.
func checkPregnancy(a *Agent, s rng.Stream) {
	if !a.bearsLitters() {
		return
	}
	remaining := RemainingLitters(a)
	if remaining <= 0 {
		return
	}
	months := constants.MonthsPerYear - a.yearPosition(constants.MonthsPerYear)
	if s.Uniform01() <= float64(remaining)/float64(months) {
		a.Pregnant = true
	}
}

// RemainingLitters is the number of litters the agent may still have this
// year, never negative.
func RemainingLitters(a *Agent) int {
	r := a.LittersTarget - a.LittersSoFar
	if r < 0 {
		return 0
	}
	return r
}
