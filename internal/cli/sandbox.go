package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codepilot/internal/sandbox"
)

// sandboxExecCmd is the hidden child-process entrypoint the executor
// re-execs the binary with. It reads one job from stdin, runs it in the
// interpreter, and writes one result to stdout. Never meant for humans.
var sandboxExecCmd = &cobra.Command{
	Use:    sandbox.ChildCommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sandbox.RunChild(os.Stdin, os.Stdout)
	},
}
