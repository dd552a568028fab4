package simulation

import "time"

// Status of a finished run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// MonthStats is one row of a run's monthly series.
type MonthStats struct {
	Month   int `json:"month"`
	Alive   int `json:"alive"`
	Males   int `json:"males"`
	Females int `json:"females"`
	Births  int `json:"births"`
	Deaths  int `json:"deaths"`
}

// Result is the outcome of a single run.
//
// A failed run keeps whatever it observed up to the failure, but its numbers
// are never folded into batch statistics.
type Result struct {
	RunIndex int    `json:"run_index"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`

	FinalAlive   int   `json:"final_alive"`
	FinalFemales int   `json:"final_females"`
	FinalMales   int   `json:"final_males"`
	TotalDeaths  int64 `json:"total_deaths"`
	TotalBirths  int64 `json:"total_births"`

	Peak        int `json:"peak"`
	PeakMonth   int `json:"peak_month"`
	Trough      int `json:"trough"`
	TroughMonth int `json:"trough_month"`

	// PopulationMonths is the sum of the live count over months 1..MonthsSimulated.
	PopulationMonths int64 `json:"population_months"`

	MonthsSimulated int `json:"months_simulated"`
	// ExtinctionMonth is the month the population reached zero, 0 if it never did.
	ExtinctionMonth int `json:"extinction_month"`

	Duration time.Duration `json:"duration_ns"`

	Series []MonthStats `json:"series,omitempty"`
}

// Failed reports whether the run aborted.
func (r Result) Failed() bool { return r.Status == StatusFailed }

// Extinct reports whether the population died out before the horizon.
func (r Result) Extinct() bool { return r.ExtinctionMonth > 0 }
