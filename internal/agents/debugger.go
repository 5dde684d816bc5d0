package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/llm"
	"github.com/lucasnoah/codepilot/internal/pipeline"
	"github.com/lucasnoah/codepilot/internal/prompt"
)

// Debugger explains a failing test run so the next generation attempt has
// something concrete to fix.
type Debugger struct {
	Client  llm.Client
	Retries int
	Log     *zap.Logger
}

func (a *Debugger) Name() string { return pipeline.StageDebug }

func (a *Debugger) Run(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
	if st.TestResults == nil {
		return nil, fmt.Errorf("no test results to debug")
	}
	if st.Code == nil {
		return nil, fmt.Errorf("no candidate program to debug")
	}

	p, err := renderPrompt("debug.md", prompt.Vars{
		"problem":  st.Problem,
		"code":     programListing(st.Code),
		"failures": failureReport(st.TestResults),
	})
	if err != nil {
		return nil, err
	}

	var res pipeline.DebugResult
	err = completeJSON(ctx, a.Client, logOrNop(a.Log), p, a.Retries, &res)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrMalformedOutput):
		res = fallbackDebug(st.TestResults)
		logOrNop(a.Log).Warn("debug analysis fell back to the mechanical summary")
	default:
		return nil, err
	}

	next := st.Clone()
	next.Debug = &res
	return next, nil
}

func programListing(prog *pipeline.CandidateProgram) string {
	names := make([]string, 0, len(prog.Files))
	for name := range prog.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "### %s\n%s\n", name, prog.Files[name])
	}
	return strings.TrimSpace(b.String())
}

// failureReport lists failing verdicts in input-case order, each with its
// outcome, detail, and the behavior the case expected.
func failureReport(res *pipeline.TestRunResult) string {
	byID := make(map[string]pipeline.TestCase, len(res.Cases))
	for _, c := range res.Cases {
		byID[c.ID] = c
	}

	var b strings.Builder
	for _, v := range res.Verdicts {
		if !v.Failed() {
			continue
		}
		c := byID[v.CaseID]
		fmt.Fprintf(&b, "- %s (%s): %s", v.CaseID, c.Kind, v.Outcome)
		if v.Detail != "" {
			fmt.Fprintf(&b, " (%s)", v.Detail)
		}
		if c.Expected != "" {
			fmt.Fprintf(&b, "; expected: %s", c.Expected)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// fallbackDebug summarizes the failure classes mechanically when the
// producer cannot.
func fallbackDebug(res *pipeline.TestRunResult) pipeline.DebugResult {
	counts := map[pipeline.Outcome]int{}
	for _, v := range res.Verdicts {
		if v.Failed() {
			counts[v.Outcome]++
		}
	}

	var causes, fixes []string
	if n := counts[pipeline.OutcomeRaisedError]; n > 0 {
		causes = append(causes, fmt.Sprintf("%d case(s) raised an error", n))
		fixes = append(fixes, "guard against unexpected input shapes before computing")
	}
	if n := counts[pipeline.OutcomeTimeout]; n > 0 {
		causes = append(causes, fmt.Sprintf("%d case(s) exceeded the time limit", n))
		fixes = append(fixes, "replace the current algorithm with a lower-complexity one")
	}
	if n := counts[pipeline.OutcomeResourceExceeded]; n > 0 {
		causes = append(causes, fmt.Sprintf("%d case(s) exceeded the memory limit", n))
		fixes = append(fixes, "avoid materializing large intermediate structures")
	}

	return pipeline.DebugResult{
		Summary:        fmt.Sprintf("%d of %d cases failed", len(res.Failed), len(res.Cases)),
		RootCauses:     causes,
		SuggestedFixes: fixes,
	}
}
