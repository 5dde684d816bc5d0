package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	resetHelpFlags(rootCmd)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetHelpFlags clears the sticky --help flag left on the package-level
// command singletons by a previous Execute, so each call parses fresh.
func resetHelpFlags(c *cobra.Command) {
	if f := c.Flags().Lookup("help"); f != nil {
		_ = f.Value.Set("false")
		f.Changed = false
	}
	for _, sub := range c.Commands() {
		resetHelpFlags(sub)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSubcommands := []string{
		"solve", "serve", "runs", "analytics", "memory",
		"templates", "config", "db", "version",
	}
	for _, sub := range expectedSubcommands {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestSandboxExecHidden(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "sandbox-exec") {
		t.Error("sandbox-exec should be hidden from help output")
	}
}

func TestRunsSubcommands(t *testing.T) {
	subcmds := []string{"list", "show"}
	for _, sub := range subcmds {
		out, err := executeCommand("runs", sub, "--help")
		if err != nil {
			t.Errorf("runs %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("runs %s --help produced no output", sub)
		}
	}
}

func TestAnalyticsSubcommands(t *testing.T) {
	subcmds := []string{"stage-duration", "outcomes", "debug-loops", "throughput"}
	for _, sub := range subcmds {
		out, err := executeCommand("analytics", sub, "--help")
		if err != nil {
			t.Errorf("analytics %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("analytics %s --help produced no output", sub)
		}
	}
}

func TestMemorySubcommands(t *testing.T) {
	subcmds := []string{"show", "set-pref"}
	for _, sub := range subcmds {
		out, err := executeCommand("memory", sub, "--help")
		if err != nil {
			t.Errorf("memory %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("memory %s --help produced no output", sub)
		}
	}
}

func TestDBSubcommands(t *testing.T) {
	subcmds := []string{"migrate", "reset", "stats"}
	for _, sub := range subcmds {
		out, err := executeCommand("db", sub, "--help")
		if err != nil {
			t.Errorf("db %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("db %s --help produced no output", sub)
		}
	}
}

func TestConfigSubcommands(t *testing.T) {
	subcmds := []string{"validate", "show"}
	for _, sub := range subcmds {
		out, err := executeCommand("config", sub, "--help")
		if err != nil {
			t.Errorf("config %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("config %s --help produced no output", sub)
		}
	}
}

func TestTemplatesList(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := executeCommand("templates", "list")
	if err != nil {
		t.Fatalf("templates list: %v", err)
	}
	for _, name := range []string{"classify-intent.md", "plan.md", "generate-code.md", "design-tests.md", "debug.md"} {
		if !strings.Contains(out, name) {
			t.Errorf("templates list missing %q:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "built-in") {
		t.Errorf("expected built-in sources, got:\n%s", out)
	}
}

func TestTemplatesInstall(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if _, err := executeCommand("templates", "install"); err != nil {
		t.Fatalf("templates install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".codepilot", "templates", "plan.md")); err != nil {
		t.Errorf("plan.md not installed: %v", err)
	}

	out, err := executeCommand("templates", "list")
	if err != nil {
		t.Fatalf("templates list: %v", err)
	}
	if strings.Contains(out, "built-in") {
		t.Errorf("after install every template should resolve to a file:\n%s", out)
	}
}

func TestSolveRequiresProblem(t *testing.T) {
	_, err := executeCommand("solve")
	if err == nil {
		t.Error("expected error when no problem is given")
	}
	if err != nil && !strings.Contains(err.Error(), "no problem given") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDBResetRequiresConfirmation(t *testing.T) {
	_, err := executeCommand("db", "reset")
	if err == nil {
		t.Error("expected error without --yes")
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("nonexistent")
	if err == nil {
		t.Error("expected error for unknown command, got nil")
	}
}
