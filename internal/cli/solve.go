package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

var solveCmd = &cobra.Command{
	Use:   "solve [problem]",
	Short: "Run the full pipeline on a programming problem",
	Long: `Run a problem statement through the pipeline: load user context, classify
intent, plan, generate code, execute it against generated tests in the
sandbox, and debug failures until the iteration budget runs out.

The problem is taken from the arguments, or from a file with --file. Pass
--user to load and update that user's preference memory.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		problem := strings.TrimSpace(strings.Join(args, " "))
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read problem file: %w", err)
			}
			problem = strings.TrimSpace(string(data))
		}
		if problem == "" {
			return fmt.Errorf("no problem given: pass it as an argument or with --file")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		jsonOut, _ := cmd.Flags().GetBool("json")
		var progress io.Writer
		if !jsonOut {
			progress = cmd.ErrOrStderr()
		}

		sol, _, _, cleanup, err := buildSolver(cmd.Context(), cfg, progress, log)
		if err != nil {
			return err
		}
		defer cleanup()

		user, _ := cmd.Flags().GetString("user")
		st, err := sol.Solve(cmd.Context(), problem, user)
		if err != nil {
			return err
		}

		if jsonOut {
			return writeJSON(cmd, st)
		}
		printRunSummary(cmd.OutOrStdout(), st)
		if showCode, _ := cmd.Flags().GetBool("code"); showCode && st.Code != nil {
			printProgram(cmd.OutOrStdout(), st.Code)
		}
		return nil
	},
}

func printRunSummary(w io.Writer, st *pipeline.State) {
	fmt.Fprintf(w, "Run:    %s\n", st.RunID)
	if st.Intent != nil {
		fmt.Fprintf(w, "Intent: %s / %s (confidence %.2f)\n",
			st.Intent.Category, st.Intent.Language, st.Intent.Confidence)
	}
	if st.Plan != nil {
		fmt.Fprintf(w, "Plan:   %s (%d steps)\n", st.Plan.Approach, len(st.Plan.Steps))
	}
	if st.Code != nil {
		fmt.Fprintf(w, "Code:   %s (entrypoint %s)\n",
			strings.Join(sortedFileNames(st.Code.Files), ", "), st.Code.Entrypoint)
	}

	if res := st.TestResults; res != nil {
		fmt.Fprintf(w, "Tests:  %s (%d/%d passed, %d debug iterations)\n",
			res.Status, len(res.Passed), len(res.Cases), st.DebugIterations())
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  CASE\tOUTCOME\tDETAIL")
		for _, v := range res.Verdicts {
			detail := v.Detail
			if len(detail) > 60 {
				detail = detail[:57] + "..."
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", v.CaseID, v.Outcome, detail)
		}
		tw.Flush()
	}

	if st.Debug != nil {
		fmt.Fprintf(w, "Debug:  %s\n", st.Debug.Summary)
	}
}

func printProgram(w io.Writer, prog *pipeline.CandidateProgram) {
	for _, name := range sortedFileNames(prog.Files) {
		fmt.Fprintf(w, "\n--- %s ---\n%s", name, prog.Files[name])
	}
}

func sortedFileNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	solveCmd.Flags().String("user", "", "User ID for preference memory")
	solveCmd.Flags().String("file", "", "Read the problem statement from a file")
	solveCmd.Flags().Bool("json", false, "Print the full final state as JSON")
	solveCmd.Flags().Bool("code", false, "Print the generated source files")
}
