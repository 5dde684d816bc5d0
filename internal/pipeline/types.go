package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasnoah/codepilot/internal/memory"
)

// Stage names, in graph order. The debug stage loops back to generate-code.
const (
	StageLoadContext    = "load-context"
	StageClassifyIntent = "classify-intent"
	StagePlan           = "plan"
	StageGenerateCode   = "generate-code"
	StageTest           = "test"
	StageDebug          = "debug"
)

// Intent categories the classifier may emit.
const (
	IntentDSA          = "dsa"
	IntentBugFix       = "bug_fix"
	IntentOptimization = "optimization"
	IntentSystemDesign = "system_design"
)

// Test case kinds.
const (
	CaseUnit     = "unit"
	CaseEdge     = "edge"
	CaseStress   = "stress"
	CaseProperty = "property"
)

// Outcome classifies the execution of one test case.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeRaisedError      Outcome = "raised_error"
	OutcomeResourceExceeded Outcome = "resource_exceeded"
)

// RunStatus summarizes a full test run.
type RunStatus string

const (
	StatusAllPassed       RunStatus = "all_passed"
	StatusPartiallyFailed RunStatus = "partially_failed"
	StatusAllFailed       RunStatus = "all_failed"
	StatusExecutionError  RunStatus = "execution_error"
)

// State is the full snapshot of one solve request as it moves through the
// pipeline. Stages treat a State as immutable: every transition works on a
// structural copy, so a stage can never observe a sibling's partial update.
// Result slots are nil until their stage has completed at least once.
type State struct {
	RunID   string `json:"run_id"`
	Problem string `json:"problem"`
	UserID  string `json:"user_id,omitempty"`

	Memory      *memory.Context   `json:"memory,omitempty"`
	Intent      *IntentResult     `json:"intent,omitempty"`
	Plan        *PlanResult       `json:"plan,omitempty"`
	Code        *CandidateProgram `json:"code,omitempty"`
	TestResults *TestRunResult    `json:"test_results,omitempty"`
	Debug       *DebugResult      `json:"debug,omitempty"`

	Log []StepLogEntry `json:"log"`
}

// NewState returns the initial snapshot for a run: identifiers and raw
// input only, no stage slots populated.
func NewState(runID, problem, userID string) *State {
	return &State{
		RunID:   runID,
		Problem: problem,
		UserID:  userID,
		Log:     []StepLogEntry{},
	}
}

// Clone returns a structural copy of s. Result slots stay shared pointers
// (their values are never mutated once a stage has published them) but the
// log slice is copied so appends on the clone cannot alias the original.
func (s *State) Clone() *State {
	c := *s
	c.Log = make([]StepLogEntry, len(s.Log))
	copy(c.Log, s.Log)
	return &c
}

// WithLogEntry returns a copy of s with exactly one log entry appended.
func (s *State) WithLogEntry(e StepLogEntry) *State {
	c := s.Clone()
	c.Log = append(c.Log, e)
	return c
}

// DebugIterations counts completed debug stages by scanning the log. The
// count is always derived so it cannot drift from the log itself.
func (s *State) DebugIterations() int {
	n := 0
	for _, e := range s.Log {
		if e.Stage == StageDebug {
			n++
		}
	}
	return n
}

// StepLogEntry records one stage execution. Entries are append-only and
// ordered exactly by stage-invocation order, including debug loops.
type StepLogEntry struct {
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// IntentResult is the classify-intent stage's output.
type IntentResult struct {
	Category   string  `json:"category"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Validate reports whether the result conforms to the intent schema.
func (r *IntentResult) Validate() error {
	switch r.Category {
	case IntentDSA, IntentBugFix, IntentOptimization, IntentSystemDesign:
	default:
		return fmt.Errorf("unknown intent category %q", r.Category)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", r.Confidence)
	}
	return nil
}

// PlanResult is the plan stage's output.
type PlanResult struct {
	Approach  string   `json:"approach"`
	Steps     []string `json:"steps"`
	EdgeCases []string `json:"edge_cases,omitempty"`
}

// Validate reports whether the result conforms to the plan schema.
func (r *PlanResult) Validate() error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for i, step := range r.Steps {
		if strings.TrimSpace(step) == "" {
			return fmt.Errorf("plan step %d is empty", i)
		}
	}
	return nil
}

// CandidateProgram is the generated source under test: file name → full
// source text, plus a "package.Function" entrypoint and a language tag.
type CandidateProgram struct {
	Files      map[string]string `json:"files"`
	Entrypoint string            `json:"entrypoint"`
	Language   string            `json:"language"`
}

// Validate reports whether the program conforms to the candidate schema.
func (p *CandidateProgram) Validate() error {
	if len(p.Files) == 0 {
		return fmt.Errorf("program has no source files")
	}
	for name, src := range p.Files {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("program has an unnamed source file")
		}
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("source file %q is empty", name)
		}
	}
	parts := strings.Split(p.Entrypoint, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("entrypoint %q is not of the form package.Function", p.Entrypoint)
	}
	if p.Language == "" {
		return fmt.Errorf("program has no language tag")
	}
	return nil
}

// TestCase is one generated test input. Expected holds a natural-language
// description of the expected behavior; it is prompt material for the debug
// stage and is never machine-compared against outputs.
type TestCase struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Input       any    `json:"input"`
	Expected    string `json:"expected"`
	Kind        string `json:"kind"`
}

// TestSuite is the test-designer producer's raw output shape.
type TestSuite struct {
	Cases []TestCase `json:"cases"`
}

// Validate reports whether the suite conforms to the test-case schema.
func (s *TestSuite) Validate() error {
	if len(s.Cases) == 0 {
		return fmt.Errorf("test suite has no cases")
	}
	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.ID == "" {
			return fmt.Errorf("case %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate case id %q", c.ID)
		}
		seen[c.ID] = true
		switch c.Kind {
		case CaseUnit, CaseEdge, CaseStress, CaseProperty:
		default:
			return fmt.Errorf("case %q has unknown kind %q", c.ID, c.Kind)
		}
	}
	return nil
}

// TestVerdict is the classified outcome of running one case.
type TestVerdict struct {
	CaseID  string  `json:"case_id"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
	Output  any     `json:"output,omitempty"`
	Stdout  string  `json:"stdout,omitempty"`
}

// Failed reports whether the verdict counts as a failure.
func (v *TestVerdict) Failed() bool {
	return v.Outcome != OutcomeSuccess
}

// TestRunResult is the aggregate of one full test run. Passed, Failed and
// Verdicts all follow input-case order.
type TestRunResult struct {
	Cases    []TestCase    `json:"cases"`
	Passed   []string      `json:"passed"`
	Failed   []string      `json:"failed"`
	Verdicts []TestVerdict `json:"verdicts"`
	Status   RunStatus     `json:"status"`
}

// DebugResult is the debug stage's analysis of a failing test run.
type DebugResult struct {
	Summary        string   `json:"summary"`
	RootCauses     []string `json:"root_causes,omitempty"`
	SuggestedFixes []string `json:"suggested_fixes,omitempty"`
}

// Validate reports whether the result conforms to the debug schema.
func (r *DebugResult) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("debug analysis has no summary")
	}
	return nil
}
