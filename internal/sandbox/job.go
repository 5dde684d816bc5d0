package sandbox

import "github.com/lucasnoah/codepilot/internal/pipeline"

// Job is the unit of work handed to a sandbox child over stdin: one
// candidate program plus one test-case input. Everything crossing the
// process boundary is JSON.
type Job struct {
	Files          map[string]string `json:"files"`
	Entrypoint     string            `json:"entrypoint"`
	Input          any               `json:"input"`
	MemoryLimitMB  int               `json:"memory_limit_mb,omitempty"`
	AllowedImports []string          `json:"allowed_imports,omitempty"`
}

// Result is the child's reply on stdout. A child that dies without
// producing one is classified by the parent, not by itself.
type Result struct {
	Outcome pipeline.Outcome `json:"outcome"`
	Output  any              `json:"output,omitempty"`
	Stdout  string           `json:"stdout,omitempty"`
	Error   string           `json:"error,omitempty"`
}
