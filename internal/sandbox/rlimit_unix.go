//go:build unix

package sandbox

import "golang.org/x/sys/unix"

// applyMemoryLimit caps the child's address space so a runaway candidate
// dies here instead of taking the host down. Best effort: a failed
// setrlimit still leaves the wall-clock kill in place.
func applyMemoryLimit(limitMB int) {
	limit := uint64(limitMB) * 1024 * 1024
	_ = unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: limit, Max: limit})
}
