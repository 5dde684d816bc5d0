//go:build !unix

package sandbox

// applyMemoryLimit is a no-op where rlimits are unavailable; the parent's
// wall-clock kill is the only backstop.
func applyMemoryLimit(limitMB int) {}
