package llm

import "context"

// Client is the generative producer boundary: one textual prompt in,
// unstructured text out. Decoding and schema-validating the reply is the
// caller's concern; transport failures come back as errors and are never
// retried here.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
