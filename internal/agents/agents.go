// Package agents implements the pipeline stages: thin wrappers that render
// a prompt, call the producer with retries, validate the reply, and fall
// back deterministically when every attempt comes back malformed. Producer
// transport failures are never absorbed here; they propagate so the
// orchestrator can fail the stage.
package agents

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/memory"
	"github.com/lucasnoah/codepilot/internal/prompt"
)

func renderPrompt(name string, vars prompt.Vars) (string, error) {
	tmpl, err := prompt.Load(name)
	if err != nil {
		return "", fmt.Errorf("load template: %w", err)
	}
	p, err := prompt.Render(tmpl, vars)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return p, nil
}

func logOrNop(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return zap.NewNop()
}

// memorySummary flattens a user context into prompt material. Empty when
// nothing is known, which drops the whole block from the template.
func memorySummary(mem *memory.Context) string {
	if mem == nil {
		return ""
	}
	var b strings.Builder
	if mem.PreferredLanguage != "" {
		fmt.Fprintf(&b, "Preferred language: %s\n", mem.PreferredLanguage)
	}
	if mem.PreferredStyleMode != "" {
		fmt.Fprintf(&b, "Preferred explanation style: %s\n", mem.PreferredStyleMode)
	}
	if len(mem.RepeatedWeaknesses) > 0 {
		fmt.Fprintf(&b, "Repeated weaknesses: %s\n", strings.Join(mem.RepeatedWeaknesses, ", "))
	}
	if len(mem.CommonMistakes) > 0 {
		b.WriteString("Recent mistakes:\n")
		for _, m := range mem.CommonMistakes {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	if mem.LastInteractionSummary != "" {
		fmt.Fprintf(&b, "Last interaction: %s\n", mem.LastInteractionSummary)
	}
	return strings.TrimSpace(b.String())
}
