package sandbox

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// Run executes every case against the candidate and aggregates the
// verdicts. Verdict order and the passed/failed id lists always follow
// input-case order regardless of parallelism, and every case lands in
// exactly one of the two lists.
func (e *Executor) Run(ctx context.Context, prog *pipeline.CandidateProgram, cases []pipeline.TestCase) *pipeline.TestRunResult {
	result := &pipeline.TestRunResult{Cases: cases, Passed: []string{}, Failed: []string{}}
	if prog == nil || len(cases) == 0 {
		result.Status = pipeline.StatusExecutionError
		return result
	}

	verdicts := make([]pipeline.TestVerdict, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism())
	for i, tc := range cases {
		g.Go(func() error {
			verdicts[i] = e.RunCase(gctx, prog, tc)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; verdicts carry failures

	result.Verdicts = verdicts
	for _, v := range verdicts {
		if v.Failed() {
			result.Failed = append(result.Failed, v.CaseID)
		} else {
			result.Passed = append(result.Passed, v.CaseID)
		}
	}

	switch {
	case len(result.Failed) == 0:
		result.Status = pipeline.StatusAllPassed
	case len(result.Passed) == 0:
		result.Status = pipeline.StatusAllFailed
	default:
		result.Status = pipeline.StatusPartiallyFailed
	}
	return result
}

func (e *Executor) parallelism() int {
	if e.Parallelism > 0 {
		return e.Parallelism
	}
	return 1
}
