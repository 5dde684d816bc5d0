package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

func failedRunState() *pipeline.State {
	st := codedState()
	st.TestResults = &pipeline.TestRunResult{
		Cases: []pipeline.TestCase{
			{ID: "unit_a", Kind: pipeline.CaseUnit, Expected: "returns the reversed list"},
			{ID: "unit_b", Kind: pipeline.CaseUnit, Expected: "handles duplicates"},
			{ID: "stress_big", Kind: pipeline.CaseStress, Expected: "finishes in time"},
		},
		Passed: []string{"unit_a"},
		Failed: []string{"unit_b", "stress_big"},
		Verdicts: []pipeline.TestVerdict{
			{CaseID: "unit_a", Outcome: pipeline.OutcomeSuccess},
			{CaseID: "unit_b", Outcome: pipeline.OutcomeRaisedError, Detail: "panic: index out of range"},
			{CaseID: "stress_big", Outcome: pipeline.OutcomeTimeout, Detail: "wall clock exceeded 2s"},
		},
		Status: pipeline.StatusPartiallyFailed,
	}
	return st
}

func TestDebuggerRequiresTestResults(t *testing.T) {
	agent := &Debugger{Client: &stubClient{}}
	st := codedState()

	if _, err := agent.Run(context.Background(), st); err == nil {
		t.Fatal("debugging must fail without test results")
	}
}

func TestDebuggerHappyPath(t *testing.T) {
	client := &stubClient{replies: []string{`{"summary":"loop bound is wrong","root_causes":["off by one"],"suggested_fixes":["use < instead of <="]}`}}
	agent := &Debugger{Client: client, Retries: 2}
	st := failedRunState()

	next, err := agent.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if next.Debug == nil || next.Debug.Summary != "loop bound is wrong" {
		t.Errorf("debug = %+v", next.Debug)
	}
	if st.Debug != nil {
		t.Error("input state must not be mutated")
	}

	p := client.prompts[0]
	if !strings.Contains(p, "panic: index out of range") {
		t.Errorf("prompt missing failure detail: %q", p)
	}
	if !strings.Contains(p, "package solution") {
		t.Errorf("prompt missing candidate source: %q", p)
	}
}

func TestDebuggerFallsBackToMechanicalSummary(t *testing.T) {
	agent := &Debugger{Client: &stubClient{replies: []string{"junk"}}, Retries: 0}
	st := failedRunState()

	next, err := agent.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("malformed output must fall back, not fail: %v", err)
	}
	d := next.Debug
	if d == nil {
		t.Fatal("debug not set")
	}
	if d.Summary != "2 of 3 cases failed" {
		t.Errorf("summary = %q", d.Summary)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("fallback analysis must validate: %v", err)
	}

	joined := strings.Join(d.RootCauses, "; ")
	if !strings.Contains(joined, "raised an error") || !strings.Contains(joined, "time limit") {
		t.Errorf("root causes = %v", d.RootCauses)
	}
}

func TestFailureReportOrderAndContent(t *testing.T) {
	st := failedRunState()
	report := failureReport(st.TestResults)

	if strings.Contains(report, "unit_a") {
		t.Errorf("report must only list failing cases: %q", report)
	}
	bIdx := strings.Index(report, "unit_b")
	sIdx := strings.Index(report, "stress_big")
	if bIdx == -1 || sIdx == -1 || bIdx > sIdx {
		t.Errorf("failing cases out of order: %q", report)
	}
	if !strings.Contains(report, "expected: handles duplicates") {
		t.Errorf("report missing expected behavior: %q", report)
	}
}
