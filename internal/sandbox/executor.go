package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

const (
	// DefaultTimeout is the per-case wall clock. The child is killed at
	// the deadline, never trusted to stop itself.
	DefaultTimeout = 2 * time.Second

	// DefaultMemoryLimitMB caps the child's address space.
	DefaultMemoryLimitMB = 256

	// ChildCommand is the hidden CLI command the parent re-execs itself
	// with to obtain an isolated interpreter process.
	ChildCommand = "sandbox-exec"
)

// Launcher abstracts child-process execution for testability.
type Launcher interface {
	Launch(ctx context.Context, job Job) (stdout, stderr []byte, err error)
}

// ExecLauncher re-executes the current binary with the hidden child
// command, feeding the job on stdin and collecting the verdict on stdout.
type ExecLauncher struct{}

func (ExecLauncher) Launch(ctx context.Context, job Job) ([]byte, []byte, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve executable: %w", err)
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job: %w", err)
	}

	cmd := exec.CommandContext(ctx, self, ChildCommand)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Executor runs candidate programs against test cases in isolated child
// processes and classifies whatever comes back. Zero-value fields fall
// back to defaults at use.
type Executor struct {
	Launcher       Launcher
	Timeout        time.Duration
	MemoryLimitMB  int
	Parallelism    int
	AllowedImports []string
	Log            *zap.Logger
}

// NewExecutor returns an Executor wired to the real process launcher.
func NewExecutor(log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		Launcher:      ExecLauncher{},
		Timeout:       DefaultTimeout,
		MemoryLimitMB: DefaultMemoryLimitMB,
		Parallelism:   1,
		Log:           log,
	}
}

// RunCase executes one test case and always returns a verdict. Timeouts,
// crashes, and resource kills are verdicts, not errors: a hostile
// candidate must not be able to abort the run.
func (e *Executor) RunCase(ctx context.Context, prog *pipeline.CandidateProgram, tc pipeline.TestCase) pipeline.TestVerdict {
	job := Job{
		Files:          prog.Files,
		Entrypoint:     prog.Entrypoint,
		Input:          tc.Input,
		MemoryLimitMB:  e.memoryLimit(),
		AllowedImports: e.AllowedImports,
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	start := time.Now()
	stdout, stderr, _ := e.launcher().Launch(runCtx, job)
	elapsed := time.Since(start)

	verdict := e.classify(runCtx, tc.ID, stdout, stderr)
	e.logger().Debug("sandbox case finished",
		zap.String("case", tc.ID),
		zap.String("outcome", string(verdict.Outcome)),
		zap.Duration("elapsed", elapsed))
	return verdict
}

// classify maps raw child output to a verdict. Deadline first, then the
// child's own result, then the post-mortem guesses.
func (e *Executor) classify(runCtx context.Context, caseID string, stdout, stderr []byte) pipeline.TestVerdict {
	if runCtx.Err() == context.DeadlineExceeded {
		return pipeline.TestVerdict{
			CaseID:  caseID,
			Outcome: pipeline.OutcomeTimeout,
			Detail:  fmt.Sprintf("wall clock exceeded %s", e.timeout()),
		}
	}

	var res Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &res); err == nil && res.Outcome != "" {
		return pipeline.TestVerdict{
			CaseID:  caseID,
			Outcome: res.Outcome,
			Detail:  res.Error,
			Output:  res.Output,
			Stdout:  res.Stdout,
		}
	}

	if oomKilled(stderr) {
		return pipeline.TestVerdict{
			CaseID:  caseID,
			Outcome: pipeline.OutcomeResourceExceeded,
			Detail:  fmt.Sprintf("memory limit %d MB exceeded", e.memoryLimit()),
		}
	}

	// Child died without a verdict, or wrote garbage.
	return pipeline.TestVerdict{
		CaseID:  caseID,
		Outcome: pipeline.OutcomeRaisedError,
		Detail:  "no result returned",
	}
}

// oomKilled recognizes the Go runtime's allocation-failure aborts under an
// address-space rlimit.
func oomKilled(stderr []byte) bool {
	for _, pattern := range [][]byte{
		[]byte("runtime: out of memory"),
		[]byte("fatal error: out of memory"),
		[]byte("cannot allocate memory"),
	} {
		if bytes.Contains(stderr, pattern) {
			return true
		}
	}
	return false
}

func (e *Executor) launcher() Launcher {
	if e.Launcher != nil {
		return e.Launcher
	}
	return ExecLauncher{}
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

func (e *Executor) memoryLimit() int {
	if e.MemoryLimitMB > 0 {
		return e.MemoryLimitMB
	}
	return DefaultMemoryLimitMB
}

func (e *Executor) logger() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}
