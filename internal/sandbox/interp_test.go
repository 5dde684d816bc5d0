package sandbox

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

const identitySrc = `package solution

func Solve(input any) (any, error) {
	return input, nil
}
`

func identityJob(input any) Job {
	return Job{
		Files:      map[string]string{"solution.go": identitySrc},
		Entrypoint: "solution.Solve",
		Input:      input,
	}
}

func TestRunJobIdentityEmptyList(t *testing.T) {
	res := RunJob(identityJob([]any{}))
	if res.Outcome != pipeline.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success", res.Outcome, res.Error)
	}
	if !reflect.DeepEqual(res.Output, []any{}) {
		t.Errorf("output = %#v, want empty list", res.Output)
	}
}

func TestRunJobComputes(t *testing.T) {
	src := `package solution

func Solve(input any) (any, error) {
	items, ok := input.([]any)
	if !ok {
		return nil, nil
	}
	sum := 0.0
	for _, it := range items {
		if f, ok := it.(float64); ok {
			sum += f
		}
	}
	return sum, nil
}
`
	job := Job{
		Files:      map[string]string{"solution.go": src},
		Entrypoint: "solution.Solve",
		Input:      []any{1.0, 2.0, 3.0},
	}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", res.Outcome, res.Error)
	}
	if got, ok := res.Output.(float64); !ok || got != 6.0 {
		t.Errorf("output = %#v, want 6", res.Output)
	}
}

func TestRunJobResultOnlySignature(t *testing.T) {
	src := `package solution

func Solve(input any) any {
	return input
}
`
	job := Job{Files: map[string]string{"solution.go": src}, Entrypoint: "solution.Solve", Input: "x"}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", res.Outcome, res.Error)
	}
	if res.Output != "x" {
		t.Errorf("output = %#v", res.Output)
	}
}

func TestRunJobPanicBecomesRaisedError(t *testing.T) {
	src := `package solution

func Solve(input any) (any, error) {
	panic("deliberate failure")
}
`
	job := Job{Files: map[string]string{"solution.go": src}, Entrypoint: "solution.Solve"}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeRaisedError {
		t.Fatalf("outcome = %s, want raised_error", res.Outcome)
	}
	if res.Error == "" {
		t.Error("raised_error verdict should carry detail")
	}
}

func TestRunJobErrorReturnBecomesRaisedError(t *testing.T) {
	src := `package solution

import "errors"

func Solve(input any) (any, error) {
	return nil, errors.New("bad input shape")
}
`
	job := Job{Files: map[string]string{"solution.go": src}, Entrypoint: "solution.Solve"}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeRaisedError {
		t.Fatalf("outcome = %s, want raised_error", res.Outcome)
	}
	if !strings.Contains(res.Error, "bad input shape") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestRunJobRejectsDisallowedImport(t *testing.T) {
	src := `package solution

import "os"

func Solve(input any) (any, error) {
	return os.Getpid(), nil
}
`
	job := Job{Files: map[string]string{"solution.go": src}, Entrypoint: "solution.Solve"}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeRaisedError {
		t.Fatalf("outcome = %s, want raised_error", res.Outcome)
	}
	if !strings.Contains(res.Error, "not allowed") {
		t.Errorf("error = %q, should name the rejected import", res.Error)
	}
}

func TestRunJobCustomAllowList(t *testing.T) {
	src := `package solution

import "time"

func Solve(input any) (any, error) {
	return time.Duration(90 * time.Minute).String(), nil
}
`
	job := Job{
		Files:      map[string]string{"solution.go": src},
		Entrypoint: "solution.Solve",
	}

	// The default list rejects time.
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeRaisedError {
		t.Fatalf("outcome = %s, want raised_error under default allow-list", res.Outcome)
	}

	// A job-level allow-list replaces the default entirely.
	job.AllowedImports = []string{"time"}
	res = RunJob(job)
	if res.Outcome != pipeline.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s), want success with custom allow-list", res.Outcome, res.Error)
	}
	if res.Output != "1h30m0s" {
		t.Errorf("output = %#v", res.Output)
	}

	// Imports outside the custom list are rejected even if the default
	// would allow them.
	job.Files = map[string]string{"solution.go": `package solution

import "fmt"

func Solve(input any) (any, error) {
	return fmt.Sprint(input), nil
}
`}
	res = RunJob(job)
	if res.Outcome != pipeline.OutcomeRaisedError {
		t.Fatalf("outcome = %s, want raised_error for fmt under custom allow-list", res.Outcome)
	}
}

func TestRunJobRejectsBadSignature(t *testing.T) {
	src := `package solution

func Solve() string {
	return "no args"
}
`
	job := Job{Files: map[string]string{"solution.go": src}, Entrypoint: "solution.Solve"}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeRaisedError {
		t.Fatalf("outcome = %s, want raised_error", res.Outcome)
	}
	if !strings.Contains(res.Error, "signature") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestRunJobMissingEntrypoint(t *testing.T) {
	job := Job{Files: map[string]string{"solution.go": identitySrc}, Entrypoint: "solution.Missing"}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeRaisedError {
		t.Fatalf("outcome = %s, want raised_error", res.Outcome)
	}
}

func TestRunJobInvalidEntrypointFormat(t *testing.T) {
	for _, ep := range []string{"", "Solve", "a.b.c", "solution.Solve()"} {
		job := Job{Files: map[string]string{"solution.go": identitySrc}, Entrypoint: ep}
		res := RunJob(job)
		if res.Outcome != pipeline.OutcomeRaisedError {
			t.Errorf("entrypoint %q: outcome = %s, want raised_error", ep, res.Outcome)
		}
	}
}

func TestRunJobNoFiles(t *testing.T) {
	res := RunJob(Job{Entrypoint: "solution.Solve"})
	if res.Outcome != pipeline.OutcomeRaisedError {
		t.Fatalf("outcome = %s, want raised_error", res.Outcome)
	}
}

func TestRunJobCapturesPrints(t *testing.T) {
	src := `package solution

import "fmt"

func Solve(input any) (any, error) {
	fmt.Println("tracing solve")
	return input, nil
}
`
	job := Job{Files: map[string]string{"solution.go": src}, Entrypoint: "solution.Solve", Input: 1.0}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", res.Outcome, res.Error)
	}
	if !strings.Contains(res.Stdout, "tracing solve") {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestRunJobMultiFileProgram(t *testing.T) {
	helper := `package solution

func double(n float64) float64 {
	return n * 2
}
`
	main := `package solution

func Solve(input any) (any, error) {
	n, _ := input.(float64)
	return double(n), nil
}
`
	job := Job{
		Files:      map[string]string{"helper.go": helper, "solution.go": main},
		Entrypoint: "solution.Solve",
		Input:      21.0,
	}
	res := RunJob(job)
	if res.Outcome != pipeline.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", res.Outcome, res.Error)
	}
	if got, _ := res.Output.(float64); got != 42.0 {
		t.Errorf("output = %#v, want 42", res.Output)
	}
}

func TestRunChildWireProtocol(t *testing.T) {
	payload, err := json.Marshal(identityJob([]any{"a", "b"}))
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}

	var out bytes.Buffer
	if err := RunChild(bytes.NewReader(payload), &out); err != nil {
		t.Fatalf("RunChild: %v", err)
	}

	var res Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Outcome != pipeline.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", res.Outcome, res.Error)
	}
	if !reflect.DeepEqual(res.Output, []any{"a", "b"}) {
		t.Errorf("output = %#v", res.Output)
	}
}

func TestRunChildRejectsGarbageJob(t *testing.T) {
	var out bytes.Buffer
	if err := RunChild(strings.NewReader("not a job"), &out); err == nil {
		t.Fatal("expected decode error")
	}
}
