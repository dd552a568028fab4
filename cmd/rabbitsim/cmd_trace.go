package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/chart"
	"github.com/nvandessel/rabbitsim/internal/export"
	"github.com/nvandessel/rabbitsim/internal/simulation"
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Run a single simulation and print its monthly series",
		Long: `Run one simulation with the batch parameters and show it month by month.

The run uses the same seed derivation as run, so "trace --run 7" replays
run 7 of a batch with the same seed.

Examples:
  rabbitsim trace --population 2 --months 36
  rabbitsim trace --run 7 --csv run7.csv --plot run7.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			index, _ := cmd.Flags().GetInt("run")
			csvPath, _ := cmd.Flags().GetString("csv")
			plotPath, _ := cmd.Flags().GetString("plot")

			if index < 0 {
				return fmt.Errorf("--run must be >= 0, got %d", index)
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			cfg := settings.Batch()
			applySimulationFlags(cmd, &cfg)
			cfg.Runs = 1
			cfg.KeepSeries = true
			if err := cfg.Validate(); err != nil {
				return err
			}

			simCfg, err := cfg.Simulation()
			if err != nil {
				return err
			}
			sim, err := simulation.New(simCfg)
			if err != nil {
				return err
			}
			res := sim.Run(index)

			if csvPath != "" {
				f, err := os.Create(csvPath)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", csvPath, err)
				}
				_, werr := export.WriteSeriesCSV(f, []simulation.Result{res})
				if cerr := f.Close(); werr == nil {
					werr = cerr
				}
				if werr != nil {
					return fmt.Errorf("failed to write %s: %w", csvPath, werr)
				}
			}
			if plotPath != "" {
				title := fmt.Sprintf("Run %d, seed %d, %s survival", index, cfg.BaseSeed, orDefault(string(cfg.Survival), "static"))
				if err := writePNG(plotPath, func(f *os.File) error { return chart.PopulationPNG(f, title, res.Series) }); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, res)
			}

			fmt.Fprintf(out, "%6s %14s %14s %14s %14s %14s\n", "month", "alive", "males", "females", "births", "deaths")
			for _, m := range res.Series {
				fmt.Fprintf(out, "%6d %14s %14s %14s %14s %14s\n", m.Month,
					humanize.Comma(int64(m.Alive)), humanize.Comma(int64(m.Males)), humanize.Comma(int64(m.Females)),
					humanize.Comma(int64(m.Births)), humanize.Comma(int64(m.Deaths)))
			}
			fmt.Fprintln(out)
			printResult(out, res)
			return nil
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().Int("run", 0, "Run index, selects the random stream")
	cmd.Flags().String("csv", "", "Also write the monthly series to this CSV file")
	cmd.Flags().String("plot", "", "Also draw the population chart to this PNG file")

	return cmd
}

// printResult writes the summary of one run.
func printResult(w io.Writer, res simulation.Result) {
	if res.Failed() {
		fmt.Fprintf(w, "Run %d failed after %d months: %s\n", res.RunIndex, res.MonthsSimulated, res.Error)
		return
	}
	fmt.Fprintf(w, "Run %d: %s alive after %d months (%s females, %s males)\n", res.RunIndex,
		humanize.Comma(int64(res.FinalAlive)), res.MonthsSimulated,
		humanize.Comma(int64(res.FinalFemales)), humanize.Comma(int64(res.FinalMales)))
	fmt.Fprintf(w, "Births %s, deaths %s, peak %s at month %d, trough %s at month %d\n",
		humanize.Comma(res.TotalBirths), humanize.Comma(res.TotalDeaths),
		humanize.Comma(int64(res.Peak)), res.PeakMonth, humanize.Comma(int64(res.Trough)), res.TroughMonth)
	if res.Extinct() {
		fmt.Fprintf(w, "Extinct at month %d\n", res.ExtinctionMonth)
	}
}

// writePNG creates path and hands it to draw, removing the file on failure.
func writePNG(path string, draw func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	err = draw(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
