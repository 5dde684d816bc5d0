package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the default Store backend: a single-connection SQLite
// database in WAL mode. One writer connection plus upsert statements give
// the per-user write serialization the Store contract requires.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// DefaultSQLitePath returns ~/.codepilot/memory.db, creating the directory
// if needed.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".codepilot")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "memory.db"), nil
}

// OpenSQLite opens or creates the preference database at the given path and
// applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping memory database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply memory schema: %w", err)
	}
	return &SQLiteStore{conn: conn, path: path}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS user_contexts (
    user_id                  TEXT PRIMARY KEY,
    preferred_language       TEXT NOT NULL DEFAULT '',
    preferred_style_mode     TEXT NOT NULL DEFAULT '',
    last_interaction_summary TEXT NOT NULL DEFAULT '',
    updated_at               TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS user_mistakes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     TEXT NOT NULL,
    category    TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_mistakes_user ON user_mistakes(user_id, id DESC);
`

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// LoadContext returns the user's context, or (nil, nil) for unknown users.
func (s *SQLiteStore) LoadContext(ctx context.Context, userID string) (*Context, error) {
	mc := &Context{UserID: userID}
	err := s.conn.QueryRowContext(ctx,
		`SELECT preferred_language, preferred_style_mode, last_interaction_summary
		 FROM user_contexts WHERE user_id = ?`, userID,
	).Scan(&mc.PreferredLanguage, &mc.PreferredStyleMode, &mc.LastInteractionSummary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load context for %q: %w", userID, err)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT category, description FROM user_mistakes
		 WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, recentMistakeLimit)
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

	weakRows, err := s.conn.QueryContext(ctx,
		`SELECT category FROM user_mistakes WHERE user_id = ?
		 GROUP BY category HAVING COUNT(*) >= ? ORDER BY COUNT(*) DESC, category`,
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
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, userID, language, style string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO user_contexts (user_id, preferred_language, preferred_style_mode)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     preferred_language = CASE WHEN excluded.preferred_language != ''
		         THEN excluded.preferred_language ELSE preferred_language END,
		     preferred_style_mode = CASE WHEN excluded.preferred_style_mode != ''
		         THEN excluded.preferred_style_mode ELSE preferred_style_mode END,
		     updated_at = datetime('now')`,
		userID, language, style)
	if err != nil {
		return fmt.Errorf("update preferences for %q: %w", userID, err)
	}
	return nil
}

// RecordMistake appends a mistake and ensures the user has a context row,
// atomically.
func (s *SQLiteStore) RecordMistake(ctx context.Context, userID, category, description string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record mistake: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_contexts (user_id) VALUES (?)
		 ON CONFLICT(user_id) DO UPDATE SET updated_at = datetime('now')`, userID); err != nil {
		return fmt.Errorf("touch context for %q: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_mistakes (user_id, category, description) VALUES (?, ?, ?)`,
		userID, category, description); err != nil {
		return fmt.Errorf("record mistake for %q: %w", userID, err)
	}
	return tx.Commit()
}

// UpdateSummary replaces the last-interaction summary.
func (s *SQLiteStore) UpdateSummary(ctx context.Context, userID, summary string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO user_contexts (user_id, last_interaction_summary)
		 VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     last_interaction_summary = excluded.last_interaction_summary,
		     updated_at = datetime('now')`,
		userID, summary)
	if err != nil {
		return fmt.Errorf("update summary for %q: %w", userID, err)
	}
	return nil
}
