package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit per-user preference memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show the stored context for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, cleanup, err := openMemory(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		mc, err := store.LoadContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if mc == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No memory stored for user %q.\n", args[0])
			return nil
		}

		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			return writeJSON(cmd, mc)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User:     %s\n", mc.UserID)
		if mc.PreferredLanguage != "" {
			fmt.Fprintf(out, "Language: %s\n", mc.PreferredLanguage)
		}
		if mc.PreferredStyleMode != "" {
			fmt.Fprintf(out, "Style:    %s\n", mc.PreferredStyleMode)
		}
		if len(mc.CommonMistakes) > 0 {
			fmt.Fprintln(out, "Recent mistakes:")
			for _, m := range mc.CommonMistakes {
				fmt.Fprintf(out, "  - %s\n", m)
			}
		}
		if len(mc.RepeatedWeaknesses) > 0 {
			fmt.Fprintln(out, "Repeated weaknesses:")
			for _, wk := range mc.RepeatedWeaknesses {
				fmt.Fprintf(out, "  - %s\n", wk)
			}
		}
		if mc.LastInteractionSummary != "" {
			fmt.Fprintf(out, "Last run: %s\n", mc.LastInteractionSummary)
		}
		return nil
	},
}

var memorySetPrefCmd = &cobra.Command{
	Use:   "set-pref <user-id>",
	Short: "Set a user's preferred language and style",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		style, _ := cmd.Flags().GetString("style")
		if language == "" && style == "" {
			return fmt.Errorf("nothing to set: pass --language and/or --style")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, cleanup, err := openMemory(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := store.UpdatePreferences(cmd.Context(), args[0], language, style); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Preferences updated for user %q.\n", args[0])
		return nil
	},
}

func init() {
	memoryShowCmd.Flags().String("format", "text", "Output format: text or json")
	memorySetPrefCmd.Flags().String("language", "", "Preferred programming language")
	memorySetPrefCmd.Flags().String("style", "", "Preferred explanation style")
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memorySetPrefCmd)
}
