package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/llm"
	"github.com/lucasnoah/codepilot/internal/pipeline"
	"github.com/lucasnoah/codepilot/internal/prompt"
)

// CodeGenerator produces the candidate program. The sandbox interprets Go
// only, so candidates are always requested and tagged as Go regardless of
// the language the user prefers to talk about.
type CodeGenerator struct {
	Client  llm.Client
	Retries int
	Log     *zap.Logger
}

func (a *CodeGenerator) Name() string { return pipeline.StageGenerateCode }

func (a *CodeGenerator) Run(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
	if st.Plan == nil {
		return nil, fmt.Errorf("no plan before code generation")
	}

	p, err := renderPrompt("generate-code.md", prompt.Vars{
		"problem":  st.Problem,
		"approach": st.Plan.Approach,
		"steps":    bulletList(st.Plan.Steps),
		"language": "go",
		"feedback": debugFeedback(st.Debug),
	})
	if err != nil {
		return nil, err
	}

	var res pipeline.CandidateProgram
	err = completeJSON(ctx, a.Client, logOrNop(a.Log), p, a.Retries, &res)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrMalformedOutput):
		res = fallbackProgram()
		logOrNop(a.Log).Warn("code generation fell back to the identity program")
	default:
		return nil, err
	}

	next := st.Clone()
	next.Code = &res
	return next, nil
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return strings.TrimSpace(b.String())
}

// debugFeedback flattens the previous debug analysis for the regeneration
// prompt. Empty on the first pass, which drops the block entirely.
func debugFeedback(d *pipeline.DebugResult) string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(d.Summary)
	if len(d.RootCauses) > 0 {
		b.WriteString("\nRoot causes:\n")
		b.WriteString(bulletList(d.RootCauses))
	}
	if len(d.SuggestedFixes) > 0 {
		b.WriteString("\nSuggested fixes:\n")
		b.WriteString(bulletList(d.SuggestedFixes))
	}
	return b.String()
}

const fallbackSource = `package solution

func Solve(input any) (any, error) {
	return input, nil
}
`

// fallbackProgram is the identity program: structurally valid, certain to
// execute, almost certain to fail real cases. It keeps the run moving so
// the failure surfaces as test verdicts instead of a dead pipeline.
func fallbackProgram() pipeline.CandidateProgram {
	return pipeline.CandidateProgram{
		Files:      map[string]string{"solution.go": fallbackSource},
		Entrypoint: "solution.Solve",
		Language:   "go",
	}
}
