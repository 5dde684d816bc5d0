package agents

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/llm"
	"github.com/lucasnoah/codepilot/internal/pipeline"
	"github.com/lucasnoah/codepilot/internal/prompt"
)

// Planner turns a classified problem into an ordered implementation plan.
type Planner struct {
	Client  llm.Client
	Retries int
	Log     *zap.Logger
}

func (a *Planner) Name() string { return pipeline.StagePlan }

func (a *Planner) Run(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
	if st.Intent == nil {
		return nil, fmt.Errorf("no intent classified before planning")
	}

	p, err := renderPrompt("plan.md", prompt.Vars{
		"problem":    st.Problem,
		"category":   st.Intent.Category,
		"confidence": strconv.FormatFloat(st.Intent.Confidence, 'f', 2, 64),
		"language":   st.Intent.Language,
		"memory":     memorySummary(st.Memory),
	})
	if err != nil {
		return nil, err
	}

	var res pipeline.PlanResult
	err = completeJSON(ctx, a.Client, logOrNop(a.Log), p, a.Retries, &res)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrMalformedOutput):
		res = fallbackPlan()
		logOrNop(a.Log).Warn("planning fell back to the generic plan")
	default:
		return nil, err
	}

	next := st.Clone()
	next.Plan = &res
	return next, nil
}

// fallbackPlan is intentionally generic: just enough structure for code
// generation to proceed when the producer cannot articulate a plan.
func fallbackPlan() pipeline.PlanResult {
	return pipeline.PlanResult{
		Approach: "Implement the most direct solution that satisfies the problem statement.",
		Steps: []string{
			"Restate the problem as concrete input and output shapes.",
			"Implement a single entrypoint that computes the output directly.",
			"Walk through the obvious edge cases by hand.",
		},
		EdgeCases: []string{"empty input", "single element", "very large input"},
	}
}
