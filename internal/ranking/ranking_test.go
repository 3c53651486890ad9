package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/refactored-ladder/internal/ladder"
)

func profile(id string, rating int, rank *int) *ladder.PlayerProfile {
	return &ladder.PlayerProfile{
		ID:         id,
		SportID:    "squash",
		Name:       id,
		Rating:     rating,
		LadderRank: rank,
	}
}

func intPtr(v int) *int { return &v }

func TestComputeRanksOrdersByRatingDescending(t *testing.T) {
	profiles := []*ladder.PlayerProfile{
		profile("low", 980, nil),
		profile("high", 1040, nil),
		profile("mid", 1000, nil),
	}

	placements := ComputeRanks(profiles)

	require.Len(t, placements, 3)
	assert.Equal(t, Placement{ProfileID: "high", Rank: 1}, placements[0])
	assert.Equal(t, Placement{ProfileID: "mid", Rank: 2}, placements[1])
	assert.Equal(t, Placement{ProfileID: "low", Rank: 3}, placements[2])
}

func TestComputeRanksAreDense(t *testing.T) {
	profiles := []*ladder.PlayerProfile{
		profile("a", 1200, nil),
		profile("b", 1100, nil),
		profile("c", 900, nil),
		profile("d", 800, nil),
	}
	// A big rating gap between b and c must not create a gap in ranks.
	placements := ComputeRanks(profiles)

	for i, pl := range placements {
		assert.Equal(t, i+1, pl.Rank)
	}
}

func TestComputeRanksTieBreak(t *testing.T) {
	older := profile("zed", 1000, nil)
	older.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := profile("amy", 1000, nil)
	newer.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	placements := ComputeRanks([]*ladder.PlayerProfile{newer, older})

	// Equal rating: the earlier joiner outranks the newcomer regardless of ID.
	assert.Equal(t, "zed", placements[0].ProfileID)
	assert.Equal(t, "amy", placements[1].ProfileID)

	// Identical join time falls back to ID for a stable order.
	newer.CreatedAt = older.CreatedAt
	placements = ComputeRanks([]*ladder.PlayerProfile{newer, older})
	assert.Equal(t, "amy", placements[0].ProfileID)
}

func TestComputeRanksSkipsDeactivated(t *testing.T) {
	gone := profile("gone", 1500, nil)
	gone.Deactivated = true
	profiles := []*ladder.PlayerProfile{
		gone,
		profile("a", 1000, nil),
		profile("b", 990, nil),
	}

	placements := ComputeRanks(profiles)

	require.Len(t, placements, 2)
	assert.Equal(t, "a", placements[0].ProfileID)
}

func TestRankMapMarksAbsentProfilesNil(t *testing.T) {
	gone := profile("gone", 1500, intPtr(1))
	gone.Deactivated = true
	profiles := []*ladder.PlayerProfile{gone, profile("a", 1000, nil)}

	ranks := RankMap(profiles, ComputeRanks(profiles))

	require.Len(t, ranks, 2)
	assert.Nil(t, ranks["gone"])
	require.NotNil(t, ranks["a"])
	assert.Equal(t, 1, *ranks["a"])
}

func TestEligibleOpponentsWindow(t *testing.T) {
	cfg := ladder.ScoringConfig{
		MaxChallengeRange: intPtr(5),
		MaxChallengeBelow: intPtr(0),
	}
	me := profile("me", 1000, intPtr(10))

	var profiles []*ladder.PlayerProfile
	profiles = append(profiles, me)
	for rank := 1; rank <= 15; rank++ {
		if rank == 10 {
			continue
		}
		profiles = append(profiles, profile("p"+string(rune('a'+rank)), 1000, intPtr(rank)))
	}

	eligible := EligibleOpponents(profiles, me, cfg, false, nil)

	// Rank 10 with range 5 and below 0 reaches ranks 5 through 9 only.
	require.Len(t, eligible, 5)
	for _, p := range eligible {
		assert.GreaterOrEqual(t, *p.LadderRank, 5)
		assert.Less(t, *p.LadderRank, 10)
	}
}

func TestEligibleOpponentsUnlimitedWhenBoundsAbsent(t *testing.T) {
	me := profile("me", 1000, intPtr(10))
	far := profile("far", 2000, intPtr(1))

	eligible := EligibleOpponents([]*ladder.PlayerProfile{me, far}, me, ladder.ScoringConfig{}, false, nil)

	require.Len(t, eligible, 1)
	assert.Equal(t, "far", eligible[0].ID)
}

func TestEligibleOpponentsUnrankedChallengerSeesEveryone(t *testing.T) {
	cfg := ladder.ScoringConfig{MaxChallengeRange: intPtr(1), MaxChallengeBelow: intPtr(1)}
	me := profile("me", 1000, nil)
	profiles := []*ladder.PlayerProfile{
		me,
		profile("top", 1200, intPtr(1)),
		profile("bottom", 800, intPtr(2)),
	}

	eligible := EligibleOpponents(profiles, me, cfg, false, nil)

	assert.Len(t, eligible, 2)
}

func TestEligibleOpponentsExcludesRecentAndDeactivated(t *testing.T) {
	me := profile("me", 1000, intPtr(2))
	recent := profile("recent", 1010, intPtr(1))
	gone := profile("gone", 990, intPtr(3))
	gone.Deactivated = true
	fresh := profile("fresh", 980, intPtr(4))

	eligible := EligibleOpponents(
		[]*ladder.PlayerProfile{me, recent, gone, fresh},
		me,
		ladder.ScoringConfig{},
		false,
		map[string]bool{"recent": true},
	)

	require.Len(t, eligible, 1)
	assert.Equal(t, "fresh", eligible[0].ID)
}

func TestEligibleOpponentsPausedSport(t *testing.T) {
	me := profile("me", 1000, intPtr(1))
	other := profile("other", 990, intPtr(2))

	eligible := EligibleOpponents([]*ladder.PlayerProfile{me, other}, me, ladder.ScoringConfig{}, true, nil)

	assert.Empty(t, eligible)
}

func TestCooldownOpponents(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	matches := []*ladder.Match{
		{Player1ID: "me", Player2ID: "recent", Status: ladder.StatusProcessed, CreatedAt: now.AddDate(0, 0, -2)},
		{Player1ID: "old", Player2ID: "me", Status: ladder.StatusProcessed, CreatedAt: now.AddDate(0, 0, -30)},
		{Player1ID: "me", Player2ID: "bailed", Status: ladder.StatusCancelled, CreatedAt: now.AddDate(0, 0, -1)},
		{Player1ID: "x", Player2ID: "y", Status: ladder.StatusProcessed, CreatedAt: now.AddDate(0, 0, -1)},
	}

	recent := CooldownOpponents(matches, "me", 7, now)

	// Only the recent completed opponent cools down. Cancelled matches and
	// matches outside the window never block a challenge.
	assert.Equal(t, map[string]bool{"recent": true}, recent)
}
