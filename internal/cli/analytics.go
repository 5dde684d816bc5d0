package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codepilot/internal/analytics"
	"github.com/lucasnoah/codepilot/internal/db"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Query pipeline performance analytics",
}

// analyticsQuery opens the run database and reads the shared flags.
func analyticsQuery(cmd *cobra.Command) (*db.DB, func(), string, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, "", "", err
	}
	database, cleanup, err := openDB(cfg)
	if err != nil {
		return nil, nil, "", "", err
	}
	since, _ := cmd.Flags().GetString("since")
	format, _ := cmd.Flags().GetString("format")
	return database, cleanup, since, format, nil
}

var analyticsStageDurationCmd = &cobra.Command{
	Use:   "stage-duration",
	Short: "Average and percentile transition times per stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cleanup, since, format, err := analyticsQuery(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		rows, err := analytics.QueryStageDurations(database, since)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(cmd, rows)
		}

		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No step data recorded.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tRUNS\tAVG MS\tP50 MS\tP95 MS")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%.1f\n", r.Stage, r.Count, r.Avg, r.P50, r.P95)
		}
		return w.Flush()
	},
}

var analyticsOutcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Finished runs grouped by terminal state",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cleanup, since, format, err := analyticsQuery(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		rows, err := analytics.QueryRunOutcomes(database, since)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(cmd, rows)
		}

		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No finished runs recorded.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OUTCOME\tRUNS\tPCT")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", r.Outcome, r.Count, r.Pct)
		}
		return w.Flush()
	},
}

var analyticsDebugLoopsCmd = &cobra.Command{
	Use:   "debug-loops",
	Short: "Distribution of debug iterations per finished run",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cleanup, since, format, err := analyticsQuery(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		dist, err := analytics.QueryDebugLoops(database, since)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(cmd, dist)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Finished runs: %d\n", dist.Total)
		fmt.Fprintf(out, "  0 loops:  %.1f%%\n", dist.Zero)
		fmt.Fprintf(out, "  1 loop:   %.1f%%\n", dist.One)
		fmt.Fprintf(out, "  2+ loops: %.1f%%\n", dist.TwoPlus)
		return nil
	},
}

var analyticsThroughputCmd = &cobra.Command{
	Use:   "throughput",
	Short: "Run counts per day, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cleanup, since, format, err := analyticsQuery(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		rows, err := analytics.QueryThroughput(database, since)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(cmd, rows)
		}

		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tSTARTED\tCOMPLETED\tFAILED\tSOLVED\tAVG SECONDS")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f\n",
				r.Period, r.Started, r.Completed, r.Failed, r.Solved, r.AvgSeconds)
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{
		analyticsStageDurationCmd,
		analyticsOutcomesCmd,
		analyticsDebugLoopsCmd,
		analyticsThroughputCmd,
	} {
		c.Flags().String("since", "", "Only include runs started at or after this timestamp")
		c.Flags().String("format", "text", "Output format: text or json")
		analyticsCmd.AddCommand(c)
	}
}
