package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB_CreatesTables(t *testing.T) {
	db, teardown, err := InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err, "InitDB should not return an error")
	defer teardown()

	for _, table := range []string{"sports", "player_profiles", "matches", "rating_history", "rank_history"} {
		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "querying for %s table should not produce an error", table)
		assert.Equal(t, table, name)
	}

	// The partial unique index guarding one active match per pair must exist.
	var idx string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_matches_one_active_per_pair'").Scan(&idx)
	require.NoError(t, err)
	assert.Equal(t, "idx_matches_one_active_per_pair", idx)
}
