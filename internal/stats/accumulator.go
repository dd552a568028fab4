package stats

import "github.com/nvandessel/rabbitsim/internal/simulation"

// Accumulator combines the results of many runs.
// It is not safe for concurrent use; give each worker its own and Merge them.
type Accumulator struct {
	FinalAlive      Metric
	TotalDeaths     Metric
	TotalBirths     Metric
	Peak            Metric
	ExtinctionMonth Metric // only extinct runs

	Extinctions uint64
	Failed      uint64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		FinalAlive:      NewMetric(),
		TotalDeaths:     NewMetric(),
		TotalBirths:     NewMetric(),
		Peak:            NewMetric(),
		ExtinctionMonth: NewMetric(),
	}
}

// Absorb records one run. Failed runs are counted but contribute no samples.
func (a *Accumulator) Absorb(res simulation.Result) {
	if res.Failed() {
		a.Failed++
		return
	}
	a.FinalAlive.Add(uint64(res.FinalAlive))
	a.TotalDeaths.Add(uint64(res.TotalDeaths))
	a.TotalBirths.Add(uint64(res.TotalBirths))
	a.Peak.Add(uint64(res.Peak))
	if res.Extinct() {
		a.Extinctions++
		a.ExtinctionMonth.Add(uint64(res.ExtinctionMonth))
	}
}

// Merge folds o into a.
func (a *Accumulator) Merge(o *Accumulator) {
	a.FinalAlive.Merge(o.FinalAlive)
	a.TotalDeaths.Merge(o.TotalDeaths)
	a.TotalBirths.Merge(o.TotalBirths)
	a.Peak.Merge(o.Peak)
	a.ExtinctionMonth.Merge(o.ExtinctionMonth)
	a.Extinctions += o.Extinctions
	a.Failed += o.Failed
}

// Completed is the number of absorbed successful runs.
func (a *Accumulator) Completed() uint64 { return a.FinalAlive.Count() }

// Report is the finalized batch summary.
type Report struct {
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`

	FinalAlive      Summary `json:"final_alive"`
	TotalDeaths     Summary `json:"total_deaths"`
	TotalBirths     Summary `json:"total_births"`
	Peak            Summary `json:"peak"`
	ExtinctionMonth Summary `json:"extinction_month"`

	Extinctions uint64 `json:"extinctions"`
	// ExtinctionRate is the percentage of completed runs that went extinct.
	ExtinctionRate float64 `json:"extinction_rate"`

	// Percentiles is set when the per-run results were kept.
	Percentiles *PercentileSet `json:"percentiles,omitempty"`
}

// Report finalizes the accumulator.
func (a *Accumulator) Report() Report {
	r := Report{
		Completed:       a.Completed(),
		Failed:          a.Failed,
		FinalAlive:      a.FinalAlive.Summary(),
		TotalDeaths:     a.TotalDeaths.Summary(),
		TotalBirths:     a.TotalBirths.Summary(),
		Peak:            a.Peak.Summary(),
		ExtinctionMonth: a.ExtinctionMonth.Summary(),
		Extinctions:     a.Extinctions,
	}
	if r.Completed > 0 {
		r.ExtinctionRate = 100 * float64(a.Extinctions) / float64(r.Completed)
	}
	return r
}
