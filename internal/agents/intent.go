package agents

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/llm"
	"github.com/lucasnoah/codepilot/internal/memory"
	"github.com/lucasnoah/codepilot/internal/pipeline"
	"github.com/lucasnoah/codepilot/internal/prompt"
)

// IntentClassifier decides what kind of problem this is. Malformed
// producer output falls back to a keyword scan with low confidence.
type IntentClassifier struct {
	Client  llm.Client
	Retries int
	Log     *zap.Logger
}

func (a *IntentClassifier) Name() string { return pipeline.StageClassifyIntent }

func (a *IntentClassifier) Run(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
	p, err := renderPrompt("classify-intent.md", prompt.Vars{
		"problem": st.Problem,
		"memory":  memorySummary(st.Memory),
	})
	if err != nil {
		return nil, err
	}

	var res pipeline.IntentResult
	err = completeJSON(ctx, a.Client, logOrNop(a.Log), p, a.Retries, &res)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrMalformedOutput):
		res = fallbackIntent(st.Problem, st.Memory)
		logOrNop(a.Log).Warn("intent classification fell back to keyword scan",
			zap.String("category", res.Category))
	default:
		return nil, err
	}

	next := st.Clone()
	next.Intent = &res
	return next, nil
}

// fallbackIntent is a crude keyword classifier: sometimes wrong, never
// malformed. Confidence is pinned low so consumers can tell it apart from
// a real classification.
func fallbackIntent(problem string, mem *memory.Context) pipeline.IntentResult {
	p := strings.ToLower(problem)
	category := pipeline.IntentDSA
	switch {
	case strings.Contains(p, "optimiz"):
		category = pipeline.IntentOptimization
	case strings.Contains(p, "bug"), strings.Contains(p, "fix"), strings.Contains(p, "error"):
		category = pipeline.IntentBugFix
	case strings.Contains(p, "system"), strings.Contains(p, "api"), strings.Contains(p, "design"):
		category = pipeline.IntentSystemDesign
	}

	language := "go"
	if mem != nil && mem.PreferredLanguage != "" {
		language = mem.PreferredLanguage
	}
	return pipeline.IntentResult{Category: category, Language: language, Confidence: 0.4}
}
