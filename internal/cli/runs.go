package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codepilot/internal/db"
	"github.com/lucasnoah/codepilot/internal/pipeline"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded pipeline runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		limit, _ := cmd.Flags().GetInt("limit")
		user, _ := cmd.Flags().GetString("user")

		var runs []db.Run
		if user != "" {
			runs, err = database.ListUserRuns(user, limit)
		} else {
			runs, err = database.ListRuns(limit)
		}
		if err != nil {
			return err
		}

		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			return writeJSON(cmd, runs)
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSTATUS\tTESTS\tUSER\tCREATED\tPROBLEM")
		for _, r := range runs {
			problem := r.Problem
			if len(problem) > 40 {
				problem = problem[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.RunID, r.Status, r.TestStatus, r.UserID, r.CreatedAt, problem)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its step log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, cleanup, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		run, err := database.GetRun(runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", runID)
		}
		steps, err := database.ListSteps(runID)
		if err != nil {
			return err
		}

		// The saved state is best-effort; old runs may have lost theirs.
		var state *pipeline.State
		if store, err := pipeline.DefaultStore(); err == nil {
			state, _ = store.Get(runID)
		}

		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			return writeJSON(cmd, struct {
				Run   *db.Run         `json:"run"`
				Steps []db.RunStep    `json:"steps"`
				State *pipeline.State `json:"state,omitempty"`
			}{run, steps, state})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run:     %s\n", run.RunID)
		if run.UserID != "" {
			fmt.Fprintf(out, "User:    %s\n", run.UserID)
		}
		fmt.Fprintf(out, "Status:  %s\n", run.Status)
		if run.TestStatus != "" {
			fmt.Fprintf(out, "Tests:   %s\n", run.TestStatus)
		}
		if run.Error != "" {
			fmt.Fprintf(out, "Error:   %s\n", run.Error)
		}
		fmt.Fprintf(out, "Created: %s\n", run.CreatedAt)
		if run.FinishedAt != "" {
			fmt.Fprintf(out, "Ended:   %s\n", run.FinishedAt)
		}
		fmt.Fprintf(out, "Problem: %s\n", run.Problem)

		if len(steps) > 0 {
			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tDURATION\tERROR")
			for _, s := range steps {
				fmt.Fprintf(w, "%s\t%dms\t%s\n", s.Stage, s.DurationMS, s.Error)
			}
			w.Flush()
		}

		if state != nil && state.Debug != nil {
			fmt.Fprintf(out, "\nDebug:   %s\n", state.Debug.Summary)
		}
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	runsListCmd.Flags().String("user", "", "Filter by user ID")
	runsListCmd.Flags().String("format", "text", "Output format: text or json")
	runsShowCmd.Flags().String("format", "text", "Output format: text or json")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}
