package pipeline

import (
	"errors"
	"fmt"
)

// ErrMalformedOutput marks a producer reply that failed JSON decoding or
// schema validation. It is the only error class the retry wrapper retries;
// once the retry bound is exhausted the stage substitutes its deterministic
// fallback, so this error never reaches a caller.
var ErrMalformedOutput = errors.New("malformed producer output")

// Malformed wraps err as a retryable malformed-output failure.
func Malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedOutput, err)
}

// StageError is a fatal error raised inside a stage: anything other than
// malformed producer output, e.g. a missing required upstream result or a
// failing preference store. The state machine logs it, appends the failing
// log entry, and propagates it; the run terminates without a final state.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
