package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// Stage is one pipeline step: it receives a state snapshot and returns the
// next snapshot, or a stage-fatal error and no snapshot.
type Stage interface {
	Name() string
	Run(ctx context.Context, st *pipeline.State) (*pipeline.State, error)
}

// Stages collects the concrete stages in graph order. All six must be set.
type Stages struct {
	LoadContext    Stage
	ClassifyIntent Stage
	Plan           Stage
	GenerateCode   Stage
	Test           Stage
	Debug          Stage
}

func (s Stages) validate() error {
	if s.LoadContext == nil || s.ClassifyIntent == nil || s.Plan == nil ||
		s.GenerateCode == nil || s.Test == nil || s.Debug == nil {
		return fmt.Errorf("all six stages must be configured")
	}
	return nil
}

// Recorder receives one callback per completed transition, failed ones
// included. Used to mirror step timings into the event log; errors are
// the recorder's own problem.
type Recorder interface {
	RecordStep(runID string, entry pipeline.StepLogEntry)
}

// DefaultMaxDebugIterations bounds the debug loop.
const DefaultMaxDebugIterations = 2

// Engine drives a state through the stage graph:
//
//	load-context → classify-intent → plan → generate-code → test
//	test → debug → generate-code    (while failures remain and the
//	                                 debug bound is not exhausted)
//
// Every transition is wrapped identically: time the stage, append exactly
// one log entry to the state, notify the recorder, and re-raise stage
// failures wrapped in a StageError.
type Engine struct {
	stages             Stages
	maxDebugIterations int
	recorder           Recorder
	progress           io.Writer // live progress output; nil = silent
	log                *zap.Logger
}

// NewEngine creates an Engine with the default debug bound.
func NewEngine(stages Stages, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		stages:             stages,
		maxDebugIterations: DefaultMaxDebugIterations,
		log:                log,
	}
}

// SetMaxDebugIterations overrides the debug-loop bound. Zero disables the
// loop entirely; negative values are ignored.
func (e *Engine) SetMaxDebugIterations(n int) {
	if n >= 0 {
		e.maxDebugIterations = n
	}
}

// SetRecorder mirrors per-transition log entries to an external sink.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (e *Engine) SetProgress(w io.Writer) {
	e.progress = w
}

// logf prints a progress line if a progress writer is configured.
func (e *Engine) logf(format string, args ...interface{}) {
	if e.progress != nil {
		fmt.Fprintf(e.progress, "  → "+format+"\n", args...)
	}
}

// Run drives st from the virtual start state to the final state. On
// success the returned state carries every stage's output; on a
// stage-fatal error it is the last snapshot, whose log already includes
// the failed transition.
func (e *Engine) Run(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
	if err := e.stages.validate(); err != nil {
		return st, err
	}

	cur := st
	stage := e.stages.LoadContext
	for stage != nil {
		if err := ctx.Err(); err != nil {
			return cur, err
		}

		next, err := e.runStage(ctx, stage, cur)
		cur = next
		if err != nil {
			return cur, err
		}

		stage, err = e.route(stage.Name(), cur)
		if err != nil {
			return cur, err
		}
	}

	e.logf("run %s: finished after %d transitions", cur.RunID, len(cur.Log))
	return cur, nil
}

// runStage executes one transition and appends exactly one log entry,
// whether the stage succeeded or not.
func (e *Engine) runStage(ctx context.Context, s Stage, st *pipeline.State) (*pipeline.State, error) {
	e.logf("run %s: stage %s", st.RunID, s.Name())

	start := time.Now()
	next, err := s.Run(ctx, st)
	end := time.Now()

	entry := pipeline.StepLogEntry{
		Stage:      s.Name(),
		StartedAt:  start.UTC(),
		EndedAt:    end.UTC(),
		DurationMS: end.Sub(start).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
		next = st // a failed stage publishes no new snapshot
	}
	out := next.WithLogEntry(entry)

	if e.recorder != nil {
		e.recorder.RecordStep(out.RunID, entry)
	}

	if err != nil {
		e.log.Error("stage failed",
			zap.String("run", st.RunID),
			zap.String("stage", s.Name()),
			zap.Error(err))
		return out, &pipeline.StageError{Stage: s.Name(), Err: err}
	}

	e.log.Info("stage completed",
		zap.String("run", st.RunID),
		zap.String("stage", s.Name()),
		zap.Int64("duration_ms", entry.DurationMS))
	return out, nil
}

// route picks the stage after current. Nil means the run is complete.
func (e *Engine) route(current string, st *pipeline.State) (Stage, error) {
	switch current {
	case pipeline.StageLoadContext:
		return e.stages.ClassifyIntent, nil
	case pipeline.StageClassifyIntent:
		return e.stages.Plan, nil
	case pipeline.StagePlan:
		return e.stages.GenerateCode, nil
	case pipeline.StageGenerateCode:
		return e.stages.Test, nil
	case pipeline.StageTest:
		if e.shouldDebug(st) {
			return e.stages.Debug, nil
		}
		return nil, nil
	case pipeline.StageDebug:
		return e.stages.GenerateCode, nil
	default:
		return nil, fmt.Errorf("no route from stage %q", current)
	}
}

// shouldDebug applies the loop predicate: a test run exists, it did not
// fully pass, and the debug bound is not exhausted. The iteration count
// is derived from the log on every evaluation, so it can never drift.
func (e *Engine) shouldDebug(st *pipeline.State) bool {
	res := st.TestResults
	if res == nil || res.Status == pipeline.StatusAllPassed {
		return false
	}
	return st.DebugIterations() < e.maxDebugIterations
}
