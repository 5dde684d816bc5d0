package cli

import (
	"github.com/spf13/cobra"

	"github.com/lucasnoah/codepilot/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the JSON API on localhost: POST /api/solve runs the pipeline, and the
read-only endpoints under /api/runs and /api/stats expose run history and
aggregate analytics straight from the run database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}

		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		sol, database, store, cleanup, err := buildSolver(cmd.Context(), cfg, nil, log)
		if err != nil {
			return err
		}
		defer cleanup()

		return web.NewServer(sol, database, store, cfg.Server.Port, log).Start()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
}
