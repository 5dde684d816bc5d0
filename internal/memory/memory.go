package memory

import "context"

// Context is the per-user preference snapshot handed to the pipeline's
// load-context stage. Mistake-derived fields are computed from the mistake
// log at load time rather than stored, so they cannot drift from it.
type Context struct {
	UserID                 string   `json:"user_id"`
	PreferredLanguage      string   `json:"preferred_language,omitempty"`
	PreferredStyleMode     string   `json:"preferred_style_mode,omitempty"`
	CommonMistakes         []string `json:"common_mistakes,omitempty"`
	RepeatedWeaknesses     []string `json:"repeated_weaknesses,omitempty"`
	LastInteractionSummary string   `json:"last_interaction_summary,omitempty"`
}

// Store is the preference-store boundary. Implementations must make each
// write atomic per user; callers never coordinate writers themselves.
type Store interface {
	// LoadContext returns the stored context for a user, or (nil, nil)
	// when the user has never been seen.
	LoadContext(ctx context.Context, userID string) (*Context, error)

	// UpdatePreferences upserts the user's preferred language and style.
	// Empty arguments leave the existing value untouched.
	UpdatePreferences(ctx context.Context, userID, language, style string) error

	// RecordMistake appends one categorized mistake to the user's log.
	RecordMistake(ctx context.Context, userID, category, description string) error

	// UpdateSummary replaces the user's last-interaction summary.
	UpdateSummary(ctx context.Context, userID, summary string) error

	Close() error
}

// mistake aggregation bounds shared by the SQL backends
const (
	recentMistakeLimit = 10
	weaknessThreshold  = 3
)
