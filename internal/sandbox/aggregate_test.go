package sandbox

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// passFailLauncher passes any case whose input starts with "ok".
type passFailLauncher struct{}

func (passFailLauncher) Launch(_ context.Context, job Job) ([]byte, []byte, error) {
	in, _ := job.Input.(string)
	if strings.HasPrefix(in, "ok") {
		return []byte(fmt.Sprintf(`{"outcome":"success","output":%q}`, in)), nil, nil
	}
	return []byte(`{"outcome":"raised_error","error":"boom"}`), nil, nil
}

func caseList(inputs ...string) []pipeline.TestCase {
	cases := make([]pipeline.TestCase, len(inputs))
	for i, in := range inputs {
		cases[i] = pipeline.TestCase{ID: fmt.Sprintf("case_%d", i), Input: in, Kind: pipeline.CaseUnit}
	}
	return cases
}

func TestRunNoCases(t *testing.T) {
	e := &Executor{Launcher: passFailLauncher{}}
	res := e.Run(context.Background(), testProgram(), nil)
	if res.Status != pipeline.StatusExecutionError {
		t.Fatalf("status = %s, want execution_error", res.Status)
	}
	if len(res.Verdicts) != 0 || len(res.Passed) != 0 || len(res.Failed) != 0 {
		t.Errorf("expected no verdicts, got %+v", res)
	}
}

func TestRunNilProgram(t *testing.T) {
	e := &Executor{Launcher: passFailLauncher{}}
	res := e.Run(context.Background(), nil, caseList("ok"))
	if res.Status != pipeline.StatusExecutionError {
		t.Fatalf("status = %s, want execution_error", res.Status)
	}
}

func TestRunAllPassed(t *testing.T) {
	e := &Executor{Launcher: passFailLauncher{}}
	res := e.Run(context.Background(), testProgram(), caseList("ok a", "ok b", "ok c"))

	if res.Status != pipeline.StatusAllPassed {
		t.Fatalf("status = %s, want all_passed", res.Status)
	}
	if len(res.Passed) != 3 || len(res.Failed) != 0 {
		t.Errorf("passed/failed = %d/%d", len(res.Passed), len(res.Failed))
	}
	if len(res.Passed)+len(res.Failed) != len(res.Cases) {
		t.Errorf("every case must land in exactly one list: %+v", res)
	}
}

func TestRunAllFailed(t *testing.T) {
	e := &Executor{Launcher: passFailLauncher{}}
	res := e.Run(context.Background(), testProgram(), caseList("bad", "bad", "bad", "bad"))

	if res.Status != pipeline.StatusAllFailed {
		t.Fatalf("status = %s, want all_failed", res.Status)
	}
	if len(res.Passed) != 0 || len(res.Failed) != 4 {
		t.Errorf("passed/failed = %d/%d", len(res.Passed), len(res.Failed))
	}
}

func TestRunPartiallyFailed(t *testing.T) {
	e := &Executor{Launcher: passFailLauncher{}}
	res := e.Run(context.Background(), testProgram(), caseList("ok 1", "bad 1", "ok 2", "bad 2", "ok 3"))

	if res.Status != pipeline.StatusPartiallyFailed {
		t.Fatalf("status = %s, want partially_failed", res.Status)
	}
	if len(res.Passed)+len(res.Failed) != len(res.Cases) {
		t.Errorf("passed %d + failed %d != cases %d", len(res.Passed), len(res.Failed), len(res.Cases))
	}

	wantPassed := []string{"case_0", "case_2", "case_4"}
	if !reflect.DeepEqual(res.Passed, wantPassed) {
		t.Errorf("passed = %v, want %v", res.Passed, wantPassed)
	}
	wantFailed := []string{"case_1", "case_3"}
	if !reflect.DeepEqual(res.Failed, wantFailed) {
		t.Errorf("failed = %v, want %v in input order", res.Failed, wantFailed)
	}

	// Verdicts stay in input-case order too.
	for i, v := range res.Verdicts {
		want := fmt.Sprintf("case_%d", i)
		if v.CaseID != want {
			t.Errorf("verdict %d is %q, want %q", i, v.CaseID, want)
		}
	}
}

func TestRunDeterministicCandidateIsIdempotent(t *testing.T) {
	e := &Executor{Launcher: passFailLauncher{}}
	cases := caseList("ok 1", "bad", "ok 2")

	first := e.Run(context.Background(), testProgram(), cases)
	second := e.Run(context.Background(), testProgram(), cases)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same suite twice, different results:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

// slowFirstLauncher finishes earlier cases later, so completion order is
// the reverse of submission order.
type slowFirstLauncher struct{ total int }

func (s slowFirstLauncher) Launch(_ context.Context, job Job) ([]byte, []byte, error) {
	idx, _ := job.Input.(int)
	time.Sleep(time.Duration(s.total-idx) * 5 * time.Millisecond)
	return []byte(fmt.Sprintf(`{"outcome":"success","output":%d}`, idx)), nil, nil
}

func TestRunParallelKeepsInputOrder(t *testing.T) {
	const n = 6
	cases := make([]pipeline.TestCase, n)
	for i := range cases {
		cases[i] = pipeline.TestCase{ID: fmt.Sprintf("case_%d", i), Input: i}
	}

	e := &Executor{Launcher: slowFirstLauncher{total: n}, Parallelism: n, Timeout: 5 * time.Second}
	res := e.Run(context.Background(), testProgram(), cases)

	if res.Status != pipeline.StatusAllPassed {
		t.Fatalf("status = %s", res.Status)
	}
	for i, v := range res.Verdicts {
		if v.CaseID != fmt.Sprintf("case_%d", i) {
			t.Errorf("verdict %d is %q; parallel run must keep input order", i, v.CaseID)
		}
	}
	for i, id := range res.Passed {
		if id != fmt.Sprintf("case_%d", i) {
			t.Errorf("passed[%d] = %q; id lists must keep input order", i, id)
		}
	}
}

// hangingLauncher never answers for inputs marked "hang", so those cases
// run into the per-case deadline.
type hangingLauncher struct{}

func (hangingLauncher) Launch(ctx context.Context, job Job) ([]byte, []byte, error) {
	if in, _ := job.Input.(string); in == "hang" {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return []byte(`{"outcome":"success","output":"done"}`), nil, nil
}

func TestRunTimedOutCasesFail(t *testing.T) {
	e := &Executor{Launcher: hangingLauncher{}, Timeout: 30 * time.Millisecond, Parallelism: 5}
	res := e.Run(context.Background(), testProgram(), caseList("ok", "hang", "ok", "hang", "ok"))

	if res.Status != pipeline.StatusPartiallyFailed {
		t.Fatalf("status = %s, want partially_failed", res.Status)
	}
	wantFailed := []string{"case_1", "case_3"}
	if !reflect.DeepEqual(res.Failed, wantFailed) {
		t.Errorf("failed = %v, want %v in input order", res.Failed, wantFailed)
	}
	wantPassed := []string{"case_0", "case_2", "case_4"}
	if !reflect.DeepEqual(res.Passed, wantPassed) {
		t.Errorf("passed = %v, want %v", res.Passed, wantPassed)
	}

	for _, i := range []int{1, 3} {
		v := res.Verdicts[i]
		if v.Outcome != pipeline.OutcomeTimeout {
			t.Errorf("verdict %d outcome = %s, want timeout", i, v.Outcome)
		}
		if !strings.Contains(v.Detail, "wall clock") {
			t.Errorf("verdict %d detail = %q", i, v.Detail)
		}
	}
}
