package solver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/db"
	"github.com/lucasnoah/codepilot/internal/memory"
	"github.com/lucasnoah/codepilot/internal/orchestrator"
	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// Solver runs one problem through the pipeline and persists everything
// around it: the run row, the per-stage step log, the final state
// artifact, and the user's memory. Persistence hooks are optional and
// best-effort; only the engine itself can fail a solve.
type Solver struct {
	engine    *orchestrator.Engine
	memory    memory.Store
	runs      *db.DB
	artifacts *pipeline.Store
	log       *zap.Logger
}

// New wires a Solver. runs, artifacts, and mem may each be nil; the
// engine must not be. When a runs db is present the engine's recorder is
// pointed at it so steps land in SQLite as they happen.
func New(engine *orchestrator.Engine, runs *db.DB, artifacts *pipeline.Store, mem memory.Store, log *zap.Logger) *Solver {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Solver{
		engine:    engine,
		memory:    mem,
		runs:      runs,
		artifacts: artifacts,
		log:       log,
	}
	if runs != nil {
		engine.SetRecorder(&stepRecorder{runs: runs, log: log})
	}
	return s
}

// Solve drives one problem end to end and returns the final state. On a
// stage-fatal error the state is still returned with the failed
// transition logged.
func (s *Solver) Solve(ctx context.Context, problem, userID string) (*pipeline.State, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return nil, fmt.Errorf("problem statement is empty")
	}

	runID := uuid.NewString()
	st := pipeline.NewState(runID, problem, userID)

	if s.runs != nil {
		if err := s.runs.InsertRun(runID, userID, problem); err != nil {
			s.log.Warn("insert run", zap.String("run", runID), zap.Error(err))
		}
	}
	s.log.Info("run started",
		zap.String("run", runID),
		zap.String("user", userID))

	final, runErr := s.engine.Run(ctx, st)

	s.finishRun(final, runErr)
	s.saveArtifact(final)
	if runErr == nil {
		s.updateMemory(ctx, final)
	}

	if runErr != nil {
		return final, runErr
	}
	s.log.Info("run finished",
		zap.String("run", runID),
		zap.String("status", string(testStatus(final))),
		zap.Int("transitions", len(final.Log)))
	return final, nil
}

func testStatus(st *pipeline.State) pipeline.RunStatus {
	if st.TestResults == nil {
		return ""
	}
	return st.TestResults.Status
}

func (s *Solver) finishRun(st *pipeline.State, runErr error) {
	if s.runs == nil {
		return
	}
	status := db.RunStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = db.RunStatusFailed
		errMsg = runErr.Error()
	}
	if err := s.runs.FinishRun(st.RunID, status, string(testStatus(st)), errMsg); err != nil {
		s.log.Warn("finish run", zap.String("run", st.RunID), zap.Error(err))
	}
}

func (s *Solver) saveArtifact(st *pipeline.State) {
	if s.artifacts == nil {
		return
	}
	if err := s.artifacts.Save(st); err != nil {
		s.log.Warn("save run artifact", zap.String("run", st.RunID), zap.Error(err))
	}
}

// updateMemory feeds a completed run back into the user's memory: one
// mistake per distinct failing outcome, the language the user asked for,
// and a one-line summary of how it went.
func (s *Solver) updateMemory(ctx context.Context, st *pipeline.State) {
	if s.memory == nil || st.UserID == "" {
		return
	}
	userID := st.UserID

	if st.Intent != nil && st.Intent.Language != "" {
		if err := s.memory.UpdatePreferences(ctx, userID, st.Intent.Language, ""); err != nil {
			s.log.Warn("update preferences", zap.String("user", userID), zap.Error(err))
		}
	}

	if res := st.TestResults; res != nil {
		seen := make(map[pipeline.Outcome]bool)
		for _, v := range res.Verdicts {
			if !v.Failed() || seen[v.Outcome] {
				continue
			}
			seen[v.Outcome] = true
			desc := v.Detail
			if desc == "" {
				desc = "case " + v.CaseID + " failed"
			}
			if err := s.memory.RecordMistake(ctx, userID, string(v.Outcome), desc); err != nil {
				s.log.Warn("record mistake", zap.String("user", userID), zap.Error(err))
			}
		}
	}

	if err := s.memory.UpdateSummary(ctx, userID, runSummary(st)); err != nil {
		s.log.Warn("update summary", zap.String("user", userID), zap.Error(err))
	}
}

func runSummary(st *pipeline.State) string {
	problem := st.Problem
	if len(problem) > 80 {
		problem = problem[:77] + "..."
	}
	res := st.TestResults
	if res == nil {
		return fmt.Sprintf("attempted %q without reaching a test run", problem)
	}
	if res.Status == pipeline.StatusAllPassed {
		return fmt.Sprintf("solved %q, all %d cases passed", problem, len(res.Cases))
	}
	return fmt.Sprintf("attempted %q, %d of %d cases failed", problem, len(res.Failed), len(res.Cases))
}

// stepRecorder mirrors engine transitions into the run_steps table.
type stepRecorder struct {
	runs *db.DB
	log  *zap.Logger
}

func (r *stepRecorder) RecordStep(runID string, e pipeline.StepLogEntry) {
	if err := r.runs.RecordStep(runID, e.Stage, e.StartedAt, e.EndedAt, e.DurationMS, e.Error); err != nil {
		r.log.Warn("record step",
			zap.String("run", runID),
			zap.String("stage", e.Stage),
			zap.Error(err))
	}
}
