package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lucasnoah/codepilot/internal/db"
	"github.com/lucasnoah/codepilot/internal/pipeline"
)

type stubSolver struct {
	state      *pipeline.State
	err        error
	gotProblem string
	gotUser    string
}

func (s *stubSolver) Solve(_ context.Context, problem, userID string) (*pipeline.State, error) {
	s.gotProblem = problem
	s.gotUser = userID
	if s.err != nil {
		return nil, s.err
	}
	return s.state, nil
}

func solvedState() *pipeline.State {
	st := pipeline.NewState("run-1", "sort a list", "alice")
	st.Intent = &pipeline.IntentResult{Category: "dsa", Language: "go", Confidence: 0.9}
	st.TestResults = &pipeline.TestRunResult{
		Cases:    []pipeline.TestCase{{ID: "c1", Kind: pipeline.CaseUnit}},
		Passed:   []string{"c1"},
		Failed:   []string{},
		Verdicts: []pipeline.TestVerdict{{CaseID: "c1", Outcome: pipeline.OutcomeSuccess}},
		Status:   pipeline.StatusAllPassed,
	}
	return st.WithLogEntry(pipeline.StepLogEntry{Stage: pipeline.StageTest, DurationMS: 12})
}

func testRunsDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open runs db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHandleSolve(t *testing.T) {
	sol := &stubSolver{state: solvedState()}
	srv := NewServer(sol, nil, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/solve", `{"problem":"sort a list","user_id":"alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if sol.gotProblem != "sort a list" || sol.gotUser != "alice" {
		t.Errorf("solver got %q / %q", sol.gotProblem, sol.gotUser)
	}

	var resp solveResponse
	decodeBody(t, rec, &resp)
	if resp.RunID != "run-1" {
		t.Errorf("run_id = %q", resp.RunID)
	}
	if resp.TestResults == nil || resp.TestResults.Status != pipeline.StatusAllPassed {
		t.Errorf("test_results = %+v", resp.TestResults)
	}
	if len(resp.Log) != 1 || resp.Log[0].Stage != pipeline.StageTest {
		t.Errorf("log = %+v", resp.Log)
	}
}

func TestHandleSolve_MissingProblem(t *testing.T) {
	srv := NewServer(&stubSolver{state: solvedState()}, nil, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/solve", `{"user_id":"alice"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] == "" {
		t.Error("missing error message")
	}
}

func TestHandleSolve_BadJSON(t *testing.T) {
	srv := NewServer(&stubSolver{state: solvedState()}, nil, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/solve", `{"problem": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleSolve_MethodNotAllowed(t *testing.T) {
	srv := NewServer(&stubSolver{state: solvedState()}, nil, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/solve", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleSolve_StageFailure(t *testing.T) {
	sol := &stubSolver{err: &pipeline.StageError{Stage: "plan", Err: errors.New("producer unreachable")}}
	srv := NewServer(sol, nil, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/solve", `{"problem":"x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if !strings.Contains(resp["error"], "plan") {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestHandleRuns(t *testing.T) {
	d := testRunsDB(t)
	for _, id := range []string{"r1", "r2", "r3"} {
		if err := d.InsertRun(id, "alice", "p"); err != nil {
			t.Fatal(err)
		}
	}
	srv := NewServer(&stubSolver{}, d, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/runs?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Runs []db.Run `json:"runs"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(resp.Runs))
	}
	if resp.Runs[0].RunID != "r3" {
		t.Errorf("newest run = %q", resp.Runs[0].RunID)
	}
}

func TestHandleRuns_FilterByUser(t *testing.T) {
	d := testRunsDB(t)
	if err := d.InsertRun("r1", "alice", "p"); err != nil {
		t.Fatal(err)
	}
	if err := d.InsertRun("r2", "bob", "p"); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(&stubSolver{}, d, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/runs?user=bob", "")
	var resp struct {
		Runs []db.Run `json:"runs"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Runs) != 1 || resp.Runs[0].UserID != "bob" {
		t.Errorf("runs = %+v", resp.Runs)
	}
}

func TestHandleRuns_EmptyWithoutDB(t *testing.T) {
	srv := NewServer(&stubSolver{}, nil, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Runs []db.Run `json:"runs"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Runs) != 0 {
		t.Errorf("runs = %+v", resp.Runs)
	}
}

func TestHandleRunDetail(t *testing.T) {
	d := testRunsDB(t)
	artifacts := pipeline.NewStore(t.TempDir())

	st := solvedState()
	if err := d.InsertRun(st.RunID, "alice", st.Problem); err != nil {
		t.Fatal(err)
	}
	if err := d.FinishRun(st.RunID, db.RunStatusCompleted, "all_passed", ""); err != nil {
		t.Fatal(err)
	}
	if err := artifacts.Save(st); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(&stubSolver{}, d, artifacts, 0, nil)
	rec := doRequest(t, srv, http.MethodGet, "/api/runs/run-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp runDetail
	decodeBody(t, rec, &resp)
	if resp.Run == nil || resp.Run.TestStatus != "all_passed" {
		t.Errorf("run = %+v", resp.Run)
	}
	if resp.State == nil || resp.State.RunID != "run-1" {
		t.Errorf("state = %+v", resp.State)
	}
	if resp.State != nil && resp.State.TestResults.Status != pipeline.StatusAllPassed {
		t.Errorf("state results = %+v", resp.State.TestResults)
	}
}

func TestHandleRunDetail_NotFound(t *testing.T) {
	srv := NewServer(&stubSolver{}, testRunsDB(t), pipeline.NewStore(t.TempDir()), 0, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/runs/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	d := testRunsDB(t)
	if err := d.InsertRun("r1", "alice", "p"); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := d.RecordStep("r1", "plan", now, now.Add(40*time.Millisecond), 40, ""); err != nil {
		t.Fatal(err)
	}
	if err := d.FinishRun("r1", db.RunStatusCompleted, "all_passed", ""); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(&stubSolver{}, d, nil, 0, nil)
	rec := doRequest(t, srv, http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TotalRuns      int `json:"total_runs"`
		StageDurations []struct {
			Stage string  `json:"stage"`
			Avg   float64 `json:"avg_ms"`
		} `json:"stage_durations"`
		Outcomes []struct {
			Outcome string `json:"outcome"`
			Count   int    `json:"count"`
		} `json:"outcomes"`
	}
	decodeBody(t, rec, &resp)
	if resp.TotalRuns != 1 {
		t.Errorf("total_runs = %d", resp.TotalRuns)
	}
	if len(resp.StageDurations) != 1 || resp.StageDurations[0].Stage != "plan" || resp.StageDurations[0].Avg != 40 {
		t.Errorf("stage_durations = %+v", resp.StageDurations)
	}
	if len(resp.Outcomes) != 1 || resp.Outcomes[0].Outcome != "all_passed" {
		t.Errorf("outcomes = %+v", resp.Outcomes)
	}
}

func TestHealthz(t *testing.T) {
	srv := NewServer(&stubSolver{}, nil, nil, 0, nil)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("body = %v", resp)
	}
}
