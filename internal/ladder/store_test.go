package ladder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/refactored-ladder/internal/database"
)

func setupStore(t *testing.T) LadderStore {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)
	return New(db)
}

func seedSport(t *testing.T, s LadderStore) {
	t.Helper()
	require.NoError(t, s.CreateSport(&Sport{
		ID:   "squash",
		Name: "Squash",
		ScoringConfig: ScoringConfig{
			Type: ScoringSimple,
		},
	}))
}

func seedProfile(t *testing.T, s LadderStore, id string) {
	t.Helper()
	require.NoError(t, s.UpsertProfile(&PlayerProfile{
		ID:      id,
		UserID:  "U-" + id,
		SportID: "squash",
		Name:    id,
	}))
}

func TestScoringConfigRoundTripsWithDefaults(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.CreateSport(&Sport{
		ID:   "padel",
		Name: "Padel",
		ScoringConfig: ScoringConfig{
			Type:      ScoringSets,
			TotalSets: 3,
		},
	}))

	sport, err := s.GetSport("padel")
	require.NoError(t, err)

	assert.Equal(t, ScoringSets, sport.ScoringConfig.Type)
	assert.Equal(t, 3, sport.ScoringConfig.TotalSets)
	// Unset windows come back normalized.
	assert.Equal(t, DefaultRematchCooldownDays, sport.ScoringConfig.RematchCooldownDays)
	assert.Equal(t, DefaultChallengeWindowDays, sport.ScoringConfig.ChallengeWindowDays)
	assert.Equal(t, DefaultAutoVerifyWindowDays, sport.ScoringConfig.AutoVerifyWindowDays)
}

func TestUpsertProfilePreservesEngineOwnedFields(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")

	require.NoError(t, s.SetRating("alice", 1100, 5))
	rank := 1
	require.NoError(t, s.SetRanks("squash", map[string]*int{"alice": &rank}))

	// A re-registration may refresh the display name but must never clobber
	// what the rating engine wrote.
	require.NoError(t, s.UpsertProfile(&PlayerProfile{
		ID:      "alice",
		UserID:  "U-alice",
		SportID: "squash",
		Name:    "Alice Renamed",
	}))

	alice, err := s.GetProfile("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", alice.Name)
	assert.Equal(t, 1100, alice.Rating)
	assert.Equal(t, 5, alice.MatchesPlayed)
	require.NotNil(t, alice.LadderRank)
	assert.Equal(t, 1, *alice.LadderRank)
}

func TestUpsertProfileRejectsDuplicateUserPerSport(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")

	err := s.UpsertProfile(&PlayerProfile{
		ID:      "alice-2",
		UserID:  "U-alice",
		SportID: "squash",
		Name:    "Alice Again",
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCreateMatchConflictsOnSecondActivePair(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	seedProfile(t, s, "bob")

	require.NoError(t, s.CreateMatch(&Match{
		ID: "m1", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusChallenged, ActionToken: "t1",
	}))

	err := s.CreateMatch(&Match{
		ID: "m2", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusChallenged, ActionToken: "t2",
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	// The reversed pair counts as the same pair.
	err = s.CreateMatch(&Match{
		ID: "m3", SportID: "squash", Player1ID: "bob", Player2ID: "alice",
		Status: StatusChallenged, ActionToken: "t3",
	})
	require.ErrorAs(t, err, &conflict)
}

func TestCreateMatchAllowsNewPairAfterTerminal(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	seedProfile(t, s, "bob")

	require.NoError(t, s.CreateMatch(&Match{
		ID: "m1", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusChallenged, ActionToken: "t1",
	}))
	_, err := s.ForceMatch("m1", MatchUpdate{Status: StatusCancelled})
	require.NoError(t, err)

	// Once the first match reaches a terminal state the index frees the pair.
	assert.NoError(t, s.CreateMatch(&Match{
		ID: "m2", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusChallenged, ActionToken: "t2",
	}))
}

func TestTransitionMatchIsCompareAndSwap(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	seedProfile(t, s, "bob")
	require.NoError(t, s.CreateMatch(&Match{
		ID: "m1", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusChallenged, ActionToken: "t1",
	}))

	now := time.Now().UTC()
	m, err := s.TransitionMatch("m1", StatusChallenged, MatchUpdate{
		Status:     StatusPending,
		AcceptedAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, m.Status)
	require.NotNil(t, m.AcceptedAt)

	// The second identical transition loses the race and reports the state
	// the match is actually in.
	_, err = s.TransitionMatch("m1", StatusChallenged, MatchUpdate{Status: StatusPending})
	var precondition *PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, StatusPending, precondition.Status)
}

func TestTransitionMatchPersistsResultFields(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	seedProfile(t, s, "bob")
	require.NoError(t, s.CreateMatch(&Match{
		ID: "m1", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusPending, ActionToken: "t1",
	}))

	winner := "alice"
	reporter := "alice"
	now := time.Now().UTC()
	_, err := s.TransitionMatch("m1", StatusPending, MatchUpdate{
		Status:     StatusProcessing,
		WinnerID:   &winner,
		ReportedBy: &reporter,
		ReportedAt: &now,
		Scores:     &ScoreSheet{Sets: []SetScore{{P1: 11, P2: 7}, {P1: 11, P2: 9}}},
	})
	require.NoError(t, err)

	m, err := s.GetMatch("m1")
	require.NoError(t, err)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, "alice", *m.WinnerID)
	require.NotNil(t, m.Scores)
	require.Len(t, m.Scores.Sets, 2)
	assert.Equal(t, 11, m.Scores.Sets[0].P1)
}

func TestScoreSheetReasonRoundTrip(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	seedProfile(t, s, "bob")
	require.NoError(t, s.CreateMatch(&Match{
		ID: "m1", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusPending, ActionToken: "t1",
	}))

	winner := "alice"
	_, err := s.TransitionMatch("m1", StatusPending, MatchUpdate{
		Status:   StatusProcessed,
		WinnerID: &winner,
		Scores:   &ScoreSheet{Reason: ReasonForfeit, ForfeitedBy: "bob"},
	})
	require.NoError(t, err)

	m, err := s.GetMatch("m1")
	require.NoError(t, err)
	require.NotNil(t, m.Scores)
	assert.True(t, m.Scores.IsReason())
	assert.Equal(t, ReasonForfeit, m.Scores.Reason)
	assert.Equal(t, "bob", m.Scores.ForfeitedBy)
	assert.Empty(t, m.Scores.Sets)
}

func TestDeactivateAndReinstateProfile(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	rank := 3
	require.NoError(t, s.SetRanks("squash", map[string]*int{"alice": &rank}))

	require.NoError(t, s.DeactivateProfile("alice", time.Now().UTC()))

	alice, err := s.GetProfile("alice")
	require.NoError(t, err)
	assert.True(t, alice.Deactivated)
	assert.Nil(t, alice.LadderRank)
	require.NotNil(t, alice.LastActiveRank)
	assert.Equal(t, 3, *alice.LastActiveRank)
	assert.NotNil(t, alice.DeactivatedAt)

	require.NoError(t, s.ReinstateProfile("alice"))

	alice, err = s.GetProfile("alice")
	require.NoError(t, err)
	assert.False(t, alice.Deactivated)
	assert.Nil(t, alice.DeactivatedAt)
	// The rank column stays empty until the next rerank writes it.
	assert.Nil(t, alice.LadderRank)
}

func TestWatermarksRoundTrip(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	seedProfile(t, s, "bob")
	require.NoError(t, s.CreateMatch(&Match{
		ID: "m1", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusChallenged, ActionToken: "t1",
	}))

	at := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkDefenderNudged("m1", at))
	require.NoError(t, s.MarkForfeitWarned("m1", at))

	m, err := s.GetMatch("m1")
	require.NoError(t, err)
	require.NotNil(t, m.DefenderNudgedAt)
	assert.True(t, m.DefenderNudgedAt.Equal(at))
	require.NotNil(t, m.ForfeitWarnedAt)
	assert.Nil(t, m.PartiesNudgedAt)

	require.NoError(t, s.MarkPenaltyWarned("alice", at))
	require.NoError(t, s.MarkPenaltyApplied("alice", at))
	require.NoError(t, s.MarkRemovalWarned("alice", at))

	alice, err := s.GetProfile("alice")
	require.NoError(t, err)
	require.NotNil(t, alice.PenaltyWarnedAt)
	require.NotNil(t, alice.LastPenaltyAt)
	require.NotNil(t, alice.RemovalWarnedAt)
}

func TestResetRatingsAndClearHistory(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	require.NoError(t, s.SetRating("alice", 1200, 10))
	rank := 1
	require.NoError(t, s.SetRanks("squash", map[string]*int{"alice": &rank}))
	require.NoError(t, s.AppendRatingHistory(&RatingHistoryEntry{
		PlayerProfileID: "alice", OldRating: 1000, NewRating: 1200, Delta: 200, Reason: "Match result",
	}))
	require.NoError(t, s.AppendRankHistory(&RankHistoryEntry{
		PlayerProfileID: "alice", NewRank: &rank, Reason: "Match result",
	}))

	require.NoError(t, s.ResetRatings("squash", BaselineRating))
	require.NoError(t, s.ClearHistory("squash"))

	alice, err := s.GetProfile("alice")
	require.NoError(t, err)
	assert.Equal(t, BaselineRating, alice.Rating)
	assert.Zero(t, alice.MatchesPlayed)
	assert.Nil(t, alice.LadderRank)

	ratings, err := s.GetRatingHistory("alice")
	require.NoError(t, err)
	assert.Empty(t, ratings)
	ranks, err := s.GetRankHistory("alice")
	require.NoError(t, err)
	assert.Empty(t, ranks)
}

func TestGetMatchesInvolvingSkipsCancelled(t *testing.T) {
	s := setupStore(t)
	seedSport(t, s)
	seedProfile(t, s, "alice")
	seedProfile(t, s, "bob")
	seedProfile(t, s, "carol")

	require.NoError(t, s.CreateMatch(&Match{
		ID: "m1", SportID: "squash", Player1ID: "alice", Player2ID: "bob",
		Status: StatusChallenged, ActionToken: "t1",
	}))
	_, err := s.ForceMatch("m1", MatchUpdate{Status: StatusCancelled})
	require.NoError(t, err)
	require.NoError(t, s.CreateMatch(&Match{
		ID: "m2", SportID: "squash", Player1ID: "carol", Player2ID: "alice",
		Status: StatusChallenged, ActionToken: "t2",
	}))

	matches, err := s.GetMatchesInvolving("alice", time.Now().UTC().AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m2", matches[0].ID)
}

func TestGetUnknownRowsReturnValidationErrors(t *testing.T) {
	s := setupStore(t)

	var verr *ValidationError
	_, err := s.GetSport("ghost")
	require.ErrorAs(t, err, &verr)
	_, err = s.GetProfile("ghost")
	require.ErrorAs(t, err, &verr)
	_, err = s.GetMatch("ghost")
	require.ErrorAs(t, err, &verr)
}
