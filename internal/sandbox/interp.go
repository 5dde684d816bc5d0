package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"regexp"
	"sort"
	"strconv"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// defaultAllowedImports is the sandbox allow-list used when a job does not
// carry its own: pure computation only. Anything touching the filesystem,
// network, environment, or clock is rejected before evaluation.
var defaultAllowedImports = map[string]bool{
	"errors":        true,
	"fmt":           true,
	"math":          true,
	"sort":          true,
	"strconv":       true,
	"strings":       true,
	"unicode":       true,
	"encoding/json": true,
}

var entrypointRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*$`)

// Child stdout is capped so a print-happy candidate cannot balloon the
// verdict payload.
const maxCapturedStdout = 4096

// RunChild is the child-process entrypoint behind the hidden sandbox-exec
// command: one job in on r, one result out on w. The memory limit is
// applied to this process before any candidate code is evaluated.
func RunChild(r io.Reader, w io.Writer) error {
	var job Job
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	if job.MemoryLimitMB > 0 {
		applyMemoryLimit(job.MemoryLimitMB)
	}
	return json.NewEncoder(w).Encode(RunJob(job))
}

// RunJob interprets one candidate program against one input and always
// produces a Result, never a panic. Deadlines are the parent's concern;
// by the time code runs here the process is already living under them.
func RunJob(job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = raisedError(fmt.Sprintf("panic: %v", r), "")
		}
	}()

	if len(job.Files) == 0 {
		return raisedError("no source files provided", "")
	}
	if !entrypointRe.MatchString(job.Entrypoint) {
		return raisedError(fmt.Sprintf("invalid entrypoint %q, want package.Function", job.Entrypoint), "")
	}

	allowed := defaultAllowedImports
	if len(job.AllowedImports) > 0 {
		allowed = make(map[string]bool, len(job.AllowedImports))
		for _, path := range job.AllowedImports {
			allowed[path] = true
		}
	}
	for name, src := range job.Files {
		if err := checkImports(name, src, allowed); err != nil {
			return raisedError(err.Error(), "")
		}
	}

	var stdout bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: io.Discard})
	if err := i.Use(stdlib.Symbols); err != nil {
		return raisedError(fmt.Sprintf("load interpreter symbols: %v", err), "")
	}

	// Deterministic file order so multi-file programs fail the same way
	// every run.
	for _, name := range sortedNames(job.Files) {
		if _, err := i.Eval(job.Files[name]); err != nil {
			return raisedError(fmt.Sprintf("evaluate %s: %v", name, err), captured(&stdout))
		}
	}

	fnVal, err := i.Eval(job.Entrypoint)
	if err != nil {
		return raisedError(fmt.Sprintf("entrypoint %s not found: %v", job.Entrypoint, err), captured(&stdout))
	}

	out, err := callEntrypoint(fnVal.Interface(), job.Entrypoint, job.Input)
	if err != nil {
		return raisedError(err.Error(), captured(&stdout))
	}
	if _, err := json.Marshal(out); err != nil {
		return raisedError(fmt.Sprintf("result not serializable: %v", err), captured(&stdout))
	}

	return Result{Outcome: pipeline.OutcomeSuccess, Output: out, Stdout: captured(&stdout)}
}

// callEntrypoint invokes the resolved function with the decoded input.
// Panics in candidate code surface as errors, not crashes.
func callEntrypoint(fn any, name string, input any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch f := fn.(type) {
	case func(any) (any, error):
		return f(input)
	case func(any) any:
		return f(input), nil
	default:
		return nil, fmt.Errorf("entrypoint %s has unsupported signature %T, want func(any) (any, error) or func(any) any", name, fn)
	}
}

// checkImports parses one source file and rejects any import outside the
// allow-list.
func checkImports(name, src string, allowed map[string]bool) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, name, src, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parse %s: %v", name, err)
	}
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("parse import in %s: %v", name, err)
		}
		if !allowed[path] {
			return fmt.Errorf("import %q is not allowed in the sandbox", path)
		}
	}
	return nil
}

func sortedNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func captured(buf *bytes.Buffer) string {
	s := buf.String()
	if len(s) > maxCapturedStdout {
		return s[:maxCapturedStdout]
	}
	return s
}

func raisedError(detail, stdout string) Result {
	return Result{Outcome: pipeline.OutcomeRaisedError, Error: detail, Stdout: stdout}
}
