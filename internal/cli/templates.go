package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/codepilot/internal/prompt"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage prompt templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt templates and where each resolves from",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := prompt.Names()
		sort.Strings(names)

		dir := prompt.Dir()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TEMPLATE\tSOURCE")
		for _, name := range names {
			source := "built-in"
			if dir != "" {
				if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
					source = filepath.Join(dir, name)
				}
			}
			fmt.Fprintf(w, "%s\t%s\n", name, source)
		}
		return w.Flush()
	},
}

var templatesInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Copy the built-in templates to ~/.codepilot/templates for editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := prompt.Install(); err != nil {
			return err
		}
		cmd.Printf("templates installed to %s\n", prompt.Dir())
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesInstallCmd)
}
