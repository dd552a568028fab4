// Package population holds the agents of one run and the monthly transition
// that ages, kills, matures and breeds them.
//
// A Pool is an arena: agents live in a slice of slots and dead slots are
// recycled through a LIFO free list, so creating and destroying an agent are
// both O(1) and slot indices stay stable for the lifetime of an agent.
package population

// Sex of an agent. Only females bear litters.
type Sex uint8

const (
	Female Sex = iota
	Male
)

func (s Sex) String() string {
	if s == Female {
		return "female"
	}
	return "male"
}

// Agent is one rabbit.
type Agent struct {
	Sex      Sex
	Alive    bool
	Mature   bool
	Pregnant bool

	// SurvivalMemo marks that this month's survival check already passed.
	SurvivalMemo bool

	Age         int
	MaturityAge int // 0 until Mature

	LittersTarget int // litters allowed this fecundity year
	LittersSoFar  int

	// SurvivalRate is the monthly survival probability in percent.
	SurvivalRate float64
}

// Spec describes an agent to insert into a pool.
type Spec struct {
	Sex          Sex
	Mature       bool
	SurvivalRate float64
	Age          int
}

// bearsLitters reports whether the agent takes part in reproduction.
func (a *Agent) bearsLitters() bool {
	return a.Sex == Female && a.Mature
}

// yearPosition is the month within the agent's current fecundity year.
func (a *Agent) yearPosition(monthsPerYear int) int {
	return (a.Age - a.MaturityAge) % monthsPerYear
}
