package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/export"
	"github.com/nvandessel/rabbitsim/internal/pathutil"
	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/store"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a stored batch's runs to CSV or Arrow",
		Long: `Export the per-run results of a stored batch.

Formats:
  csv         one summary row per run (Sim_Number, Status, Final_Alive, ...)
  series-csv  one row per run and month; needs a batch saved with --keep-series
  arrow       Arrow IPC file of the run summaries, batch parameters in the schema metadata

Without --output the file goes to <root>/.rabbitsim/exports/<id>-<format>.<ext>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			root, _ := cmd.Flags().GetString("root")
			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
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
			if rec.StoredRuns == 0 {
				return fmt.Errorf("batch %s was saved without per-run results", rec.ID)
			}
			if format == export.FormatSeriesCSV && !rec.HasSeries {
				return fmt.Errorf("batch %s was saved without monthly series; rerun with --keep-series --save", rec.ID)
			}

			var results []simulation.Result
			if format == export.FormatSeriesCSV {
				results, err = st.LoadResults(cmd.Context(), rec.ID)
			} else {
				results, err = st.ListRuns(cmd.Context(), rec.ID)
			}
			if err != nil {
				return err
			}

			if output == "" {
				output = filepath.Join(store.DataDir(root), pathutil.ExportDirName,
					fmt.Sprintf("%s-%s%s", store.ShortID(rec.ID), format, format.Ext()))
			}
			if err := store.EnsureDir(output); err != nil {
				return err
			}
			rows, err := export.WriteFile(output, format, results, rec.Metadata())
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id": rec.ID, "format": format, "path": output, "rows": rows,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s rows to %s\n", humanize.Comma(int64(rows)), output)
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", string(export.FormatCSV), "Export format: csv, series-csv or arrow")
	cmd.Flags().StringP("output", "o", "", "Output file")
	return cmd
}
