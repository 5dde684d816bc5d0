package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/memory"
	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// ContextLoader primes the run with whatever the memory store knows about
// the user. An unknown user yields no context; a failing store kills the
// run, since every later stage would silently lose its personalization.
type ContextLoader struct {
	Store memory.Store
	Log   *zap.Logger
}

func (a *ContextLoader) Name() string { return pipeline.StageLoadContext }

func (a *ContextLoader) Run(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
	next := st.Clone()
	if a.Store == nil || st.UserID == "" {
		return next, nil
	}

	mem, err := a.Store.LoadContext(ctx, st.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading context for user %q: %w", st.UserID, err)
	}
	if mem == nil {
		logOrNop(a.Log).Debug("no stored context", zap.String("user", st.UserID))
		return next, nil
	}
	next.Memory = mem
	return next, nil
}
