package population

import "github.com/nvandessel/rabbitsim/internal/rng"

// litterTargets is the yearly litter-count distribution as (cumulative
// probability, litters) pairs.
var litterTargets = [...]struct {
	cum     float64
	litters int
}{
	{0.05, 3},
	{0.15, 4},
	{0.40, 5},
	{0.70, 6},
	{0.90, 7},
	{0.97, 8},
	{1.00, 9},
}

// DrawLittersTarget draws how many litters a female may have this year.
func DrawLittersTarget(s rng.Stream) int {
	return littersFor(s.Uniform01())
}

func littersFor(u float64) int {
	for _, t := range litterTargets {
		if u < t.cum {
			return t.litters
		}
	}
	return litterTargets[len(litterTargets)-1].litters
}
