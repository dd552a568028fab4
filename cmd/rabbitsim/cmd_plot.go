package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/chart"
	"github.com/nvandessel/rabbitsim/internal/pathutil"
	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/store"
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <id>",
		Short: "Draw the monthly series of a stored run as a PNG chart",
		Long: `Draw one run of a batch saved with --keep-series.

Kinds:
  population  alive, females and males per month
  flow        births and deaths per month

Examples:
  rabbitsim plot 3f2a --run 0
  rabbitsim plot 3f2a --run 12 --kind flow -o run12.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			root, _ := cmd.Flags().GetString("root")
			run, _ := cmd.Flags().GetInt("run")
			kind, _ := cmd.Flags().GetString("kind")
			output, _ := cmd.Flags().GetString("output")

			var draw func(w io.Writer, title string, series []simulation.MonthStats) error
			switch kind {
			case "population":
				draw = chart.PopulationPNG
			case "flow":
				draw = chart.BirthsDeathsPNG
			default:
				return fmt.Errorf("unknown chart kind %q (valid: population, flow)", kind)
			}

			st, err := openStoreFromFlags(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.GetBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !rec.HasSeries {
				return fmt.Errorf("batch %s was saved without monthly series; rerun with --keep-series --save", rec.ID)
			}
			series, err := st.MonthSeries(cmd.Context(), rec.ID, run)
			if err != nil {
				return err
			}

			if output == "" {
				output = filepath.Join(store.DataDir(root), pathutil.ExportDirName,
					fmt.Sprintf("%s-run%d-%s.png", store.ShortID(rec.ID), run, kind))
			}
			if err := store.EnsureDir(output); err != nil {
				return err
			}
			title := fmt.Sprintf("Batch %s, run %d (%s survival)", store.ShortID(rec.ID), run, orDefault(string(rec.Config.Survival), "static"))
			if err := writePNG(output, func(f *os.File) error { return draw(f, title, series) }); err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": rec.ID, "run": run, "kind": kind, "path": output})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().Int("run", 0, "Run index to plot")
	cmd.Flags().String("kind", "population", "Chart kind: population or flow")
	cmd.Flags().StringP("output", "o", "", "PNG file (default <root>/.rabbitsim/exports/<id>-run<N>-<kind>.png)")
	return cmd
}
