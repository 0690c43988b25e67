package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO watch_cursors (scope, key, value) VALUES (?, ?, ?)`,
		"issue_created", "last", "2025-01-01T00:00:00Z")
	require.NoError(t, err)

	var value string
	err = db.QueryRow(`SELECT value FROM watch_cursors WHERE scope = ? AND key = ?`,
		"issue_created", "last").Scan(&value)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00Z", value)
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening applies no further migrations.
	db, err = Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
