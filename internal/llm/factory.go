package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Options selects and parameterizes a provider. APIKey wins over APIKeyEnv;
// both empty means the provider must not need a key.
type Options struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
}

func (o Options) apiKey() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	if o.APIKeyEnv != "" {
		return os.Getenv(o.APIKeyEnv)
	}
	return ""
}

// New builds a Client from options. An empty or "mock" provider yields the
// deterministic MockClient; unknown providers are an error rather than a
// silent fallback.
func New(ctx context.Context, opts Options) (Client, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "mock":
		return &MockClient{}, nil
	case "openai":
		key := opts.apiKey()
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("openai provider selected but no api key configured")
		}
		model := opts.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return &OpenAIClient{APIKey: key, Model: model, BaseURL: opts.BaseURL}, nil
	case "gemini":
		key := opts.apiKey()
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		return NewGeminiClient(ctx, key, opts.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
