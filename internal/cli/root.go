package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "codepilot",
	Short: "codepilot is an agent pipeline for programming problems",
	Long: `codepilot takes a natural-language programming problem and drives it through
a fixed agent pipeline: load user context, classify intent, plan, generate
code, run it against generated tests in a sandbox, and debug failures until
the iteration budget runs out.

All state is stored in ~/.codepilot/ (SQLite for runs and memory, JSON for
run artifacts). Without a config file the pipeline uses the built-in mock
producer, which needs no API key.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default: ./codepilot.yaml, then ~/.codepilot/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(sandboxExecCmd)
}
