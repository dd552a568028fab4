package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nvandessel/rabbitsim/internal/montecarlo"
	"github.com/nvandessel/rabbitsim/internal/stats"
)

// batchView is the JSON shape of run and show.
type batchView struct {
	ID      string            `json:"id,omitempty"`
	Config  montecarlo.Config `json:"config"`
	Workers int               `json:"workers"`
	Elapsed time.Duration     `json:"elapsed_ns"`
	Report  stats.Report      `json:"report"`
}

func num(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

// printReport writes the human-readable batch summary.
func printReport(w io.Writer, cfg montecarlo.Config, workers int, elapsed time.Duration, r stats.Report) {
	fmt.Fprintf(w, "Batch: %s runs x %s months, initial population %s\n",
		humanize.Comma(int64(cfg.Runs)), humanize.Comma(int64(cfg.Months)), humanize.Comma(int64(cfg.InitialPopulation)))
	fmt.Fprintf(w, "Model: %s survival, %s litters, seed %d\n", orDefault(string(cfg.Survival), "static"), orDefault(string(cfg.Litters), "reset"), cfg.BaseSeed)
	fmt.Fprintf(w, "Workers: %d, elapsed %s\n", workers, elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Completed: %s, failed: %s, extinct: %s (%.2f%%)\n\n",
		humanize.Comma(int64(r.Completed)), humanize.Comma(int64(r.Failed)),
		humanize.Comma(int64(r.Extinctions)), r.ExtinctionRate)

	if r.Completed == 0 {
		fmt.Fprintln(w, "No completed runs.")
		return
	}

	fmt.Fprintf(w, "%-18s %16s %16s %14s %14s %16s\n", "", "mean", "sd", "min", "max", "95% ci")
	rows := []struct {
		name string
		s    stats.Summary
	}{
		{"final population", r.FinalAlive},
		{"total deaths", r.TotalDeaths},
		{"total births", r.TotalBirths},
		{"peak population", r.Peak},
	}
	if r.Extinctions > 0 {
		rows = append(rows, struct {
			name string
			s    stats.Summary
		}{"extinction month", r.ExtinctionMonth})
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%-18s %16s %16s %14s %14s %16s\n", row.name,
			num(row.s.Mean), num(row.s.SD), num(row.s.Min), num(row.s.Max), "± "+num(row.s.CI95))
	}

	if p := r.Percentiles; p != nil {
		fmt.Fprintf(w, "\n%-18s %14s %14s %14s\n", "", "p5", "p50", "p95")
		fmt.Fprintf(w, "%-18s %14s %14s %14s\n", "final population", num(p.FinalAlive.P5), num(p.FinalAlive.P50), num(p.FinalAlive.P95))
		fmt.Fprintf(w, "%-18s %14s %14s %14s\n", "total deaths", num(p.TotalDeaths.P5), num(p.TotalDeaths.P50), num(p.TotalDeaths.P95))
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
