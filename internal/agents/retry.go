package agents

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/llm"
	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// validator is implemented by every producer payload type.
type validator interface {
	Validate() error
}

// completeJSON asks the producer for a JSON document and decodes it into
// out, allowing up to retries extra attempts. Only malformed replies are
// retried: a reply that fails to decode or validate. A failed producer
// call returns immediately, since retrying a dead transport with the same
// prompt buys nothing. After the last attempt the malformed error is
// returned for the caller's deterministic fallback to handle.
func completeJSON(ctx context.Context, client llm.Client, log *zap.Logger, prompt string, retries int, out validator) error {
	if retries < 0 {
		retries = 0
	}
	target := reflect.ValueOf(out).Elem()

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		reply, err := client.Complete(ctx, prompt)
		if err != nil {
			return fmt.Errorf("producer call: %w", err)
		}

		// Each attempt decodes into a zeroed value so a later reply can
		// never merge with fields a malformed one left behind.
		target.Set(reflect.Zero(target.Type()))
		if err := decodeReply(reply, out); err != nil {
			lastErr = err
			log.Warn("malformed producer reply",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", retries+1),
				zap.Error(err))
			continue
		}
		if err := out.Validate(); err != nil {
			lastErr = pipeline.Malformed(err)
			log.Warn("producer reply failed validation",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", retries+1),
				zap.Error(err))
			continue
		}
		return nil
	}
	return lastErr
}
