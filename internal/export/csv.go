// Package export writes batch results to CSV and Arrow IPC files.
//
// CSV column names match the per-run summary and monthly series layouts read
// by the analysis notebooks (Sim_Number, Month, Total_Alive, ...).
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/nvandessel/rabbitsim/internal/simulation"
)

// RunsHeader is the header of the per-run summary CSV.
var RunsHeader = []string{
	"Sim_Number", "Status", "Final_Alive", "Final_Females", "Final_Males",
	"Total_Deaths", "Total_Births", "Peak", "Peak_Month", "Trough", "Trough_Month",
	"Population_Months", "Months_Simulated", "Extinction_Month", "Error",
}

// SeriesHeader is the header of the monthly series CSV.
var SeriesHeader = []string{"Sim_Number", "Month", "Total_Alive", "Males", "Females", "Births", "Deaths"}

func itoa(v int) string     { return strconv.Itoa(v) }
func i64toa(v int64) string { return strconv.FormatInt(v, 10) }

// WriteRunsCSV writes one summary row per run.
func WriteRunsCSV(w io.Writer, results []simulation.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RunsHeader); err != nil {
		return fmt.Errorf("writing runs header: %w", err)
	}
	for _, r := range results {
		row := []string{
			itoa(r.RunIndex), string(r.Status),
			itoa(r.FinalAlive), itoa(r.FinalFemales), itoa(r.FinalMales),
			i64toa(r.TotalDeaths), i64toa(r.TotalBirths),
			itoa(r.Peak), itoa(r.PeakMonth), itoa(r.Trough), itoa(r.TroughMonth),
			i64toa(r.PopulationMonths), itoa(r.MonthsSimulated), itoa(r.ExtinctionMonth),
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing run %d: %w", r.RunIndex, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeriesCSV writes the monthly series of every run that has one.
// It returns the number of data rows written.
func WriteSeriesCSV(w io.Writer, results []simulation.Result) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(SeriesHeader); err != nil {
		return 0, fmt.Errorf("writing series header: %w", err)
	}
	rows := 0
	for _, r := range results {
		for _, m := range r.Series {
			row := []string{
				itoa(r.RunIndex), itoa(m.Month), itoa(m.Alive),
				itoa(m.Males), itoa(m.Females), itoa(m.Births), itoa(m.Deaths),
			}
			if err := cw.Write(row); err != nil {
				return rows, fmt.Errorf("writing run %d month %d: %w", r.RunIndex, m.Month, err)
			}
			rows++
		}
	}
	cw.Flush()
	return rows, cw.Error()
}
