package stats

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/rabbitsim/internal/simulation"
)

// Percentiles is the p5/p50/p95 spread of one quantity.
type Percentiles struct {
	P5  float64 `json:"p5"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
}

// PercentileSet holds the spreads reported for a batch.
type PercentileSet struct {
	FinalAlive  Percentiles `json:"final_alive"`
	TotalDeaths Percentiles `json:"total_deaths"`
}

// Spread computes empirical percentiles of values. values is not modified.
func Spread(values []float64) Percentiles {
	if len(values) == 0 {
		return Percentiles{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Percentiles{
		P5:  stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P50: stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95: stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}

// PercentilesOf computes the batch spreads from kept results, skipping failed
// runs. Results are sorted by value, so their order does not matter.
func PercentilesOf(results []simulation.Result) *PercentileSet {
	alive := make([]float64, 0, len(results))
	dead := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			continue
		}
		alive = append(alive, float64(r.FinalAlive))
		dead = append(dead, float64(r.TotalDeaths))
	}
	if len(alive) == 0 {
		return nil
	}
	return &PercentileSet{
		FinalAlive:  Spread(alive),
		TotalDeaths: Spread(dead),
	}
}
