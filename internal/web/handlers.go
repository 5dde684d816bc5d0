package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/analytics"
	"github.com/lucasnoah/codepilot/internal/db"
	"github.com/lucasnoah/codepilot/internal/pipeline"
)

type solveRequest struct {
	Problem string `json:"problem"`
	UserID  string `json:"user_id"`
}

type solveResponse struct {
	RunID       string                     `json:"run_id"`
	Intent      *pipeline.IntentResult     `json:"intent,omitempty"`
	Plan        *pipeline.PlanResult       `json:"plan,omitempty"`
	Code        *pipeline.CandidateProgram `json:"code,omitempty"`
	TestResults *pipeline.TestRunResult    `json:"test_results,omitempty"`
	Debug       *pipeline.DebugResult      `json:"debug,omitempty"`
	Log         []pipeline.StepLogEntry    `json:"log"`
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Problem == "" {
		respondError(w, http.StatusBadRequest, "problem is required")
		return
	}

	st, err := s.solver.Solve(r.Context(), req.Problem, req.UserID)
	if err != nil {
		s.log.Error("solve failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, solveResponse{
		RunID:       st.RunID,
		Intent:      st.Intent,
		Plan:        st.Plan,
		Code:        st.Code,
		TestResults: st.TestResults,
		Debug:       st.Debug,
		Log:         st.Log,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	if s.runs == nil {
		respondJSON(w, http.StatusOK, map[string]any{"runs": []db.Run{}})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	user := r.URL.Query().Get("user")

	var (
		runs []db.Run
		err  error
	)
	if user != "" {
		runs, err = s.runs.ListUserRuns(user, limit)
	} else {
		runs, err = s.runs.ListRuns(limit)
	}
	if err != nil {
		s.log.Error("list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type runDetail struct {
	Run   *db.Run         `json:"run,omitempty"`
	State *pipeline.State `json:"state,omitempty"`
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	var detail runDetail
	if s.runs != nil {
		run, err := s.runs.GetRun(id)
		if err != nil {
			s.log.Error("get run", zap.String("run", id), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "get run failed")
			return
		}
		detail.Run = run
	}
	if s.artifacts != nil {
		if st, err := s.artifacts.Get(id); err == nil {
			detail.State = st
		}
	}
	if detail.Run == nil && detail.State == nil {
		respondError(w, http.StatusNotFound, "run "+id+" not found")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	if s.runs == nil {
		respondJSON(w, http.StatusOK, map[string]any{"total_runs": 0})
		return
	}

	since := r.URL.Query().Get("since")

	total, err := s.runs.CountRuns()
	if err != nil {
		s.log.Error("count runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	durations, err := analytics.QueryStageDurations(s.runs, since)
	if err != nil {
		s.log.Error("stage durations", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	outcomes, err := analytics.QueryRunOutcomes(s.runs, since)
	if err != nil {
		s.log.Error("run outcomes", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	loops, err := analytics.QueryDebugLoops(s.runs, since)
	if err != nil {
		s.log.Error("debug loops", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	throughput, err := analytics.QueryThroughput(s.runs, since)
	if err != nil {
		s.log.Error("throughput", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "stats failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"total_runs":      total,
		"stage_durations": durations,
		"outcomes":        outcomes,
		"debug_loops":     loops,
		"throughput":      throughput,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
