package watch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Cursor scopes. Keys within a scope identify the tracked entity
// ("last" for the global issue cursor, the issue or PR number
// otherwise).
const (
	ScopeIssueCreated = "issue_created"
	ScopeIssuePlan    = "issue_plan"
	ScopePRUpdated    = "pr_updated"
	ScopePRFeedback   = "pr_feedback"
)

// CursorStore persists watch cursors in the state database so a
// restarted watcher resumes where it left off instead of replaying
// history.
type CursorStore struct {
	db *sql.DB
}

// NewCursorStore wraps an opened state database.
func NewCursorStore(db *sql.DB) *CursorStore {
	return &CursorStore{db: db}
}

// Get returns a cursor value, or "" when none has been stored.
func (s *CursorStore) Get(ctx context.Context, scope, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM watch_cursors WHERE scope = ? AND key = ?`, scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cursor %s/%s: %w", scope, key, err)
	}
	return value, nil
}

// Set upserts a cursor value.
func (s *CursorStore) Set(ctx context.Context, scope, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watch_cursors (scope, key, value, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, key, value)
	if err != nil {
		return fmt.Errorf("failed to write cursor %s/%s: %w", scope, key, err)
	}
	return nil
}

// GetTime reads a cursor as an RFC3339 timestamp. Absent or malformed
// values read as the zero time.
func (s *CursorStore) GetTime(ctx context.Context, scope, key string) (time.Time, error) {
	value, err := s.Get(ctx, scope, key)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// SetTime stores a timestamp cursor in RFC3339.
func (s *CursorStore) SetTime(ctx context.Context, scope, key string, t time.Time) error {
	return s.Set(ctx, scope, key, t.UTC().Format(time.RFC3339))
}

// GetInt64 reads a cursor as an integer. Absent or malformed values
// read as 0.
func (s *CursorStore) GetInt64(ctx context.Context, scope, key string) (int64, error) {
	value, err := s.Get(ctx, scope, key)
	if err != nil || value == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// SetInt64 stores an integer cursor.
func (s *CursorStore) SetInt64(ctx context.Context, scope, key string, n int64) error {
	return s.Set(ctx, scope, key, strconv.FormatInt(n, 10))
}
