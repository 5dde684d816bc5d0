package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// StageDuration holds duration stats for a stage.
type StageDuration struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
}

// QueryStageDurations returns average and percentile transition times per
// stage, straight from the recorded step log.
func QueryStageDurations(database DB, since string) ([]StageDuration, error) {
	query := `SELECT stage, duration_ms FROM run_steps`
	args := []interface{}{}
	if since != "" {
		query += ` WHERE started_at >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage durations: %w", err)
	}
	defer rows.Close()

	stageDurations := make(map[string][]float64)
	for rows.Next() {
		var stage string
		var durationMS int64
		if err := rows.Scan(&stage, &durationMS); err != nil {
			return nil, fmt.Errorf("scan stage duration: %w", err)
		}
		stageDurations[stage] = append(stageDurations[stage], float64(durationMS))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []StageDuration
	for stage, durations := range stageDurations {
		sort.Float64s(durations)
		results = append(results, StageDuration{
			Stage: stage,
			Count: len(durations),
			Avg:   avg(durations),
			P50:   percentile(durations, 50),
			P95:   percentile(durations, 95),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results, nil
}

// RunOutcome holds how often runs end in each terminal state.
type RunOutcome struct {
	Outcome string  `json:"outcome"`
	Count   int     `json:"count"`
	Pct     float64 `json:"pct"`
}

// QueryRunOutcomes groups finished runs by their terminal state. Completed
// runs report their test status; runs killed by a stage failure report
// "error".
func QueryRunOutcomes(database DB, since string) ([]RunOutcome, error) {
	query := `
		SELECT status, COALESCE(test_status, ''), COUNT(*)
		FROM runs
		WHERE status != 'running'`
	args := []interface{}{}
	if since != "" {
		query += ` AND created_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY status, test_status`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	total := 0
	for rows.Next() {
		var status, testStatus string
		var n int
		if err := rows.Scan(&status, &testStatus, &n); err != nil {
			return nil, fmt.Errorf("scan run outcome: %w", err)
		}
		outcome := testStatus
		if status == "failed" || outcome == "" {
			outcome = "error"
		}
		counts[outcome] += n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []RunOutcome
	for outcome, n := range counts {
		results = append(results, RunOutcome{Outcome: outcome, Count: n, Pct: pct(n, total)})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Outcome < results[j].Outcome
	})
	return results, nil
}

// DebugLoopDist holds the distribution of debug iterations across runs.
type DebugLoopDist struct {
	Total   int     `json:"total"`
	Zero    float64 `json:"zero_loops_pct"`
	One     float64 `json:"one_loop_pct"`
	TwoPlus float64 `json:"two_plus_pct"`
}

// QueryDebugLoops returns how many debug iterations finished runs needed.
func QueryDebugLoops(database DB, since string) (DebugLoopDist, error) {
	query := `
		SELECT r.run_id, COUNT(s.id)
		FROM runs r
		LEFT JOIN run_steps s ON s.run_id = r.run_id AND s.stage = 'debug'
		WHERE r.status != 'running'`
	args := []interface{}{}
	if since != "" {
		query += ` AND r.created_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY r.run_id`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return DebugLoopDist{}, fmt.Errorf("query debug loops: %w", err)
	}
	defer rows.Close()

	var zero, one, twoPlus, total int
	for rows.Next() {
		var runID string
		var loops int
		if err := rows.Scan(&runID, &loops); err != nil {
			return DebugLoopDist{}, fmt.Errorf("scan debug loops: %w", err)
		}
		total++
		switch {
		case loops == 0:
			zero++
		case loops == 1:
			one++
		default:
			twoPlus++
		}
	}
	if err := rows.Err(); err != nil {
		return DebugLoopDist{}, err
	}

	return DebugLoopDist{
		Total:   total,
		Zero:    pct(zero, total),
		One:     pct(one, total),
		TwoPlus: pct(twoPlus, total),
	}, nil
}

// Throughput holds run volume for one day.
type Throughput struct {
	Period     string  `json:"period"`
	Started    int     `json:"started"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Solved     int     `json:"solved"`
	AvgSeconds float64 `json:"avg_duration_seconds"`
}

// QueryThroughput returns run counts grouped by day, newest first.
func QueryThroughput(database DB, since string) ([]Throughput, error) {
	query := `
		SELECT
			strftime('%Y-%m-%d', created_at) as period,
			COUNT(*) as started,
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) as completed,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) as failed,
			SUM(CASE WHEN test_status = 'all_passed' THEN 1 ELSE 0 END) as solved,
			AVG(CASE WHEN finished_at IS NOT NULL
				THEN (julianday(finished_at) - julianday(created_at)) * 86400.0
				END) as avg_seconds
		FROM runs`
	args := []interface{}{}
	if since != "" {
		query += ` WHERE created_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY period ORDER BY period DESC`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query throughput: %w", err)
	}
	defer rows.Close()

	var results []Throughput
	for rows.Next() {
		var tp Throughput
		var avgSeconds sql.NullFloat64
		if err := rows.Scan(&tp.Period, &tp.Started, &tp.Completed, &tp.Failed, &tp.Solved, &avgSeconds); err != nil {
			return nil, fmt.Errorf("scan throughput: %w", err)
		}
		if avgSeconds.Valid {
			tp.AvgSeconds = math.Round(avgSeconds.Float64*10) / 10
		}
		results = append(results, tp)
	}
	return results, rows.Err()
}

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
