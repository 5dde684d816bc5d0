package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore backs the preference store with a Postgres pool, for
// deployments where several codepilot instances share one user base.
// Row-level upserts give the same per-user write atomicity as the SQLite
// backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS user_contexts (
    user_id                  TEXT PRIMARY KEY,
    preferred_language       TEXT NOT NULL DEFAULT '',
    preferred_style_mode     TEXT NOT NULL DEFAULT '',
    last_interaction_summary TEXT NOT NULL DEFAULT '',
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_mistakes (
    id          BIGSERIAL PRIMARY KEY,
    user_id     TEXT NOT NULL,
    category    TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_mistakes_user ON user_mistakes (user_id, id DESC);
`

// OpenPostgres connects to the given DSN and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply memory schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// LoadContext returns the user's context, or (nil, nil) for unknown users.
func (s *PostgresStore) LoadContext(ctx context.Context, userID string) (*Context, error) {
	mc := &Context{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT preferred_language, preferred_style_mode, last_interaction_summary
		 FROM user_contexts WHERE user_id = $1`, userID,
	).Scan(&mc.PreferredLanguage, &mc.PreferredStyleMode, &mc.LastInteractionSummary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load context for %q: %w", userID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT category, description FROM user_mistakes
		 WHERE user_id = $1 ORDER BY id DESC LIMIT $2`, userID, recentMistakeLimit)
	if err != nil {
		return nil, fmt.Errorf("load mistakes for %q: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var category, description string
		if err := rows.Scan(&category, &description); err != nil {
			return nil, fmt.Errorf("scan mistake: %w", err)
		}
		mc.CommonMistakes = append(mc.CommonMistakes, category+": "+description)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mistakes: %w", err)
	}

	weakRows, err := s.pool.Query(ctx,
		`SELECT category FROM user_mistakes WHERE user_id = $1
		 GROUP BY category HAVING COUNT(*) >= $2 ORDER BY COUNT(*) DESC, category`,
		userID, weaknessThreshold)
	if err != nil {
		return nil, fmt.Errorf("load weaknesses for %q: %w", userID, err)
	}
	defer weakRows.Close()
	for weakRows.Next() {
		var category string
		if err := weakRows.Scan(&category); err != nil {
			return nil, fmt.Errorf("scan weakness: %w", err)
		}
		mc.RepeatedWeaknesses = append(mc.RepeatedWeaknesses, category)
	}
	if err := weakRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weaknesses: %w", err)
	}
	return mc, nil
}

// UpdatePreferences upserts language/style; empty values keep existing ones.
func (s *PostgresStore) UpdatePreferences(ctx context.Context, userID, language, style string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_contexts (user_id, preferred_language, preferred_style_mode)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
		     preferred_language = CASE WHEN excluded.preferred_language != ''
		         THEN excluded.preferred_language ELSE user_contexts.preferred_language END,
		     preferred_style_mode = CASE WHEN excluded.preferred_style_mode != ''
		         THEN excluded.preferred_style_mode ELSE user_contexts.preferred_style_mode END,
		     updated_at = now()`,
		userID, language, style)
	if err != nil {
		return fmt.Errorf("update preferences for %q: %w", userID, err)
	}
	return nil
}

// RecordMistake appends a mistake and ensures the user has a context row.
func (s *PostgresStore) RecordMistake(ctx context.Context, userID, category, description string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin record mistake: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_contexts (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = now()`, userID); err != nil {
		return fmt.Errorf("touch context for %q: %w", userID, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO user_mistakes (user_id, category, description) VALUES ($1, $2, $3)`,
		userID, category, description); err != nil {
		return fmt.Errorf("record mistake for %q: %w", userID, err)
	}
	return tx.Commit(ctx)
}

// UpdateSummary replaces the last-interaction summary.
func (s *PostgresStore) UpdateSummary(ctx context.Context, userID, summary string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_contexts (user_id, last_interaction_summary)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET
		     last_interaction_summary = excluded.last_interaction_summary,
		     updated_at = now()`,
		userID, summary)
	if err != nil {
		return fmt.Errorf("update summary for %q: %w", userID, err)
	}
	return nil
}
