package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/store"
)

func newBatchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List stored batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			st, err := openStoreFromFlags(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.ListBatches(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, map[string]any{"batches": records, "count": len(records)})
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No stored batches. Run 'rabbitsim run --save' to create one.")
				return nil
			}

			fmt.Fprintf(out, "%-8s  %-16s  %7s  %6s  %12s  %-11s  %14s  %8s\n",
				"id", "created", "runs", "months", "population", "survival", "mean final", "extinct")
			for _, rec := range records {
				fmt.Fprintf(out, "%-8s  %-16s  %7s  %6d  %12s  %-11s  %14s  %7.1f%%\n",
					store.ShortID(rec.ID), humanize.Time(rec.CreatedAt),
					humanize.Comma(int64(rec.Config.Runs)), rec.Config.Months,
					humanize.Comma(int64(rec.Config.InitialPopulation)),
					orDefault(string(rec.Config.Survival), "static"),
					num(rec.Report.FinalAlive.Mean), rec.Report.ExtinctionRate)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum batches to list (0 = all)")
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored batch's configuration and report",
		Long: `Show a stored batch. The id may be any unique prefix of at least 4 characters.

Examples:
  rabbitsim show 3f2a
  rabbitsim show 3f2a9c1e --runs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showRuns, _ := cmd.Flags().GetBool("runs")

			st, err := openStoreFromFlags(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.GetBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				view := map[string]any{"batch": rec}
				if showRuns {
					runs, err := st.ListRuns(cmd.Context(), rec.ID)
					if err != nil {
						return err
					}
					view["runs"] = runs
				}
				return printJSON(out, view)
			}

			fmt.Fprintf(out, "Batch %s, created %s (%s)\n", rec.ID, rec.CreatedAt.Local().Format(time.DateTime), humanize.Time(rec.CreatedAt))
			printReport(out, rec.Config, rec.Workers, rec.Elapsed, rec.Report)
			fmt.Fprintf(out, "\nStored runs: %d", rec.StoredRuns)
			if rec.HasSeries {
				fmt.Fprint(out, " (with monthly series)")
			}
			fmt.Fprintln(out)

			if !showRuns {
				return nil
			}
			runs, err := st.ListRuns(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%5s  %-9s  %12s  %14s  %12s  %7s\n", "run", "status", "final", "deaths", "peak", "extinct")
			for _, r := range runs {
				extinct := "-"
				if r.Extinct() {
					extinct = fmt.Sprintf("m%d", r.ExtinctionMonth)
				}
				fmt.Fprintf(out, "%5d  %-9s  %12s  %14s  %12s  %7s\n", r.RunIndex, r.Status,
					humanize.Comma(int64(r.FinalAlive)), humanize.Comma(r.TotalDeaths),
					humanize.Comma(int64(r.Peak)), extinct)
			}
			return nil
		},
	}
	cmd.Flags().Bool("runs", false, "Also list the stored per-run summaries")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored batch with its runs and series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			st, err := openStoreFromFlags(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.GetBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := st.DeleteBatch(cmd.Context(), rec.ID); err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": rec.ID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted batch %s\n", rec.ID)
			return nil
		},
	}
}
