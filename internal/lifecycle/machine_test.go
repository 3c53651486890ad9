package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/mauv0809/refactored-ladder/internal/database"
	"github.com/mauv0809/refactored-ladder/internal/events"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/metrics"
	"github.com/mauv0809/refactored-ladder/internal/notifier"
	"github.com/mauv0809/refactored-ladder/internal/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	machine  *Machine
	store    ladder.LadderStore
	notifier *notifier.Mock
	events   *events.MockPublisher
	metrics  *metrics.Mock
}

func setup(t *testing.T, cfg ladder.ScoringConfig) *fixture {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)

	store := ladder.New(db)
	require.NoError(t, store.CreateSport(&ladder.Sport{ID: "squash", Name: "Squash", ScoringConfig: cfg}))

	base := time.Now().Add(-48 * time.Hour)
	for i, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, store.UpsertProfile(&ladder.PlayerProfile{
			ID:        id,
			UserID:    "user-" + id,
			SportID:   "squash",
			Name:      id,
			Rating:    ladder.BaselineRating,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	m := metrics.NewMock()
	n := notifier.NewMock()
	pub := events.NewMock()
	engine := rating.New(store, m)
	return &fixture{
		machine:  New(store, engine, n, pub, m),
		store:    store,
		notifier: n,
		events:   pub,
		metrics:  m,
	}
}

func setsConfig() ladder.ScoringConfig {
	return ladder.ScoringConfig{Type: ladder.ScoringSets, TotalSets: 3}
}

func simpleConfig() ladder.ScoringConfig {
	return ladder.ScoringConfig{Type: ladder.ScoringSimple}
}

func (f *fixture) challenge(t *testing.T, challenger, defender string) *ladder.Match {
	t.Helper()
	res, err := f.machine.Challenge(challenger, defender, "let's play", false)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)
	// Reload to pick up the stored token.
	match, err := f.store.GetMatch(res.Match.ID)
	require.NoError(t, err)
	return match
}

func TestChallenge_CreatesMatchAndNotifies(t *testing.T) {
	f := setup(t, setsConfig())

	match := f.challenge(t, "alice", "bob")

	assert.Equal(t, ladder.StatusChallenged, match.Status)
	assert.Equal(t, "alice", match.Player1ID)
	assert.Equal(t, "bob", match.Player2ID)
	assert.NotEmpty(t, match.ActionToken)

	require.Len(t, f.notifier.ChallengeCreatedCalls, 1)
	require.Len(t, f.events.PublishCalls, 1)
	assert.Equal(t, events.EventChallengeCreated, f.events.PublishCalls[0].Event)
}

func TestChallenge_RejectsSecondActiveMatchForPair(t *testing.T) {
	f := setup(t, setsConfig())
	f.challenge(t, "alice", "bob")

	_, err := f.machine.Challenge("alice", "bob", "", false)
	var cerr *ladder.ConflictError
	require.ErrorAs(t, err, &cerr)

	// The reversed pair hits the same conflict.
	_, err = f.machine.Challenge("bob", "alice", "", false)
	require.ErrorAs(t, err, &cerr)
}

func TestChallenge_RejectsPausedSport(t *testing.T) {
	f := setup(t, setsConfig())
	require.NoError(t, f.store.SetSportPaused("squash", true))

	_, err := f.machine.Challenge("alice", "bob", "", false)
	var verr *ladder.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestChallenge_RejectsDeactivatedOpponent(t *testing.T) {
	f := setup(t, setsConfig())
	require.NoError(t, f.store.DeactivateProfile("bob", time.Now()))

	_, err := f.machine.Challenge("alice", "bob", "", false)
	var verr *ladder.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAccept_OnlyDefenderWithToken(t *testing.T) {
	f := setup(t, setsConfig())
	match := f.challenge(t, "alice", "bob")

	// Wrong token.
	_, err := f.machine.Accept(match.ID, "bogus", "bob", false)
	var aerr *ladder.AuthorizationError
	require.ErrorAs(t, err, &aerr)

	// Wrong actor.
	_, err = f.machine.Accept(match.ID, match.ActionToken, "alice", false)
	require.ErrorAs(t, err, &aerr)

	// Defender with the right token.
	res, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusPending, res.Match.Status)
	assert.NotNil(t, res.Match.AcceptedAt)
	require.Len(t, f.notifier.ChallengeAcceptedCalls, 1)
}

func TestAccept_Twice_SecondIsNotApplicable(t *testing.T) {
	f := setup(t, setsConfig())
	match := f.challenge(t, "alice", "bob")

	res, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)

	res, err = f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotApplicable, res.Outcome)
	assert.Equal(t, ladder.StatusPending, res.Match.Status)
	// No second notification for the repeat click.
	assert.Len(t, f.notifier.ChallengeAcceptedCalls, 1)
}

func TestWithdraw_OnlyChallenger(t *testing.T) {
	f := setup(t, setsConfig())
	match := f.challenge(t, "alice", "bob")

	_, err := f.machine.Withdraw(match.ID, match.ActionToken, "bob", false)
	var aerr *ladder.AuthorizationError
	require.ErrorAs(t, err, &aerr)

	res, err := f.machine.Withdraw(match.ID, match.ActionToken, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusCancelled, res.Match.Status)
	require.NotNil(t, res.Match.Scores)
	assert.Equal(t, ladder.ReasonWithdrawn, res.Match.Scores.Reason)
}

func TestDecline_ForfeitsToChallenger(t *testing.T) {
	f := setup(t, setsConfig())
	match := f.challenge(t, "alice", "bob")

	res, err := f.machine.Decline(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusProcessed, res.Match.Status)
	require.NotNil(t, res.Match.WinnerID)
	assert.Equal(t, "alice", *res.Match.WinnerID)
	require.NotNil(t, res.Match.Scores)
	assert.Equal(t, ladder.ReasonForfeit, res.Match.Scores.Reason)

	// The forfeit is rated like a played win.
	alice, err := f.store.GetProfile("alice")
	require.NoError(t, err)
	assert.Equal(t, 1016, alice.Rating)
}

func TestForfeit_EitherPartyFromPending(t *testing.T) {
	f := setup(t, setsConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)

	res, err := f.machine.Forfeit(match.ID, match.ActionToken, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusProcessed, res.Match.Status)
	require.NotNil(t, res.Match.WinnerID)
	assert.Equal(t, "bob", *res.Match.WinnerID)
}

func TestSubmitResult_SetsWinnerIsDerived(t *testing.T) {
	f := setup(t, setsConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)

	sets := []ladder.SetScore{{P1: 21, P2: 15}, {P1: 18, P2: 21}, {P1: 21, P2: 19}}
	res, err := f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "", sets, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusProcessing, res.Match.Status)
	require.NotNil(t, res.Match.WinnerID)
	assert.Equal(t, "alice", *res.Match.WinnerID)
	require.NotNil(t, res.Match.ReportedBy)
	assert.Equal(t, "alice", *res.Match.ReportedBy)
	require.Len(t, f.notifier.ResultReportedCalls, 1)
}

func TestSubmitResult_TiedSetsRejected(t *testing.T) {
	f := setup(t, setsConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)

	sets := []ladder.SetScore{{P1: 21, P2: 19}, {P1: 19, P2: 21}}
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "", sets, false)
	var verr *ladder.ValidationError
	require.ErrorAs(t, err, &verr)

	// No state change on rejection.
	current, err := f.store.GetMatch(match.ID)
	require.NoError(t, err)
	assert.Equal(t, ladder.StatusPending, current.Status)
}

func TestSubmitResult_AllEmptySetsRejected(t *testing.T) {
	f := setup(t, setsConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)

	sets := []ladder.SetScore{{P1: 0, P2: 0}}
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "", sets, false)
	var verr *ladder.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSubmitResult_SimpleWinnerMustBeParticipant(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)

	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "carol", nil, false)
	var verr *ladder.ValidationError
	require.ErrorAs(t, err, &verr)

	res, err := f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "bob", nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	require.NotNil(t, res.Match.WinnerID)
	assert.Equal(t, "bob", *res.Match.WinnerID)
}

func TestVerify_ReporterCannotVerifyOwnReport(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "alice", nil, false)
	require.NoError(t, err)

	_, err = f.machine.Verify(match.ID, match.ActionToken, "alice", true, false)
	var aerr *ladder.AuthorizationError
	require.ErrorAs(t, err, &aerr)
}

func TestVerify_AcceptProcessesRatings(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "alice", nil, false)
	require.NoError(t, err)

	res, err := f.machine.Verify(match.ID, match.ActionToken, "bob", true, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusProcessed, res.Match.Status)

	alice, err := f.store.GetProfile("alice")
	require.NoError(t, err)
	bob, err := f.store.GetProfile("bob")
	require.NoError(t, err)
	assert.Equal(t, 1016, alice.Rating)
	assert.Equal(t, 984, bob.Rating)
	require.Len(t, f.notifier.ResultVerifiedCalls, 1)
	assert.Equal(t, "alice", f.notifier.ResultVerifiedCalls[0].Winner.ID)
}

func TestVerify_RacingVerifies_ExactlyOneWins(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "alice", nil, false)
	require.NoError(t, err)

	// First verify lands, the second finds the state gone and is a no-op.
	first, err := f.machine.Verify(match.ID, match.ActionToken, "bob", true, false)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, first.Outcome)

	second, err := f.machine.Verify(match.ID, match.ActionToken, "bob", false, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotApplicable, second.Outcome)
	assert.Equal(t, ladder.StatusProcessed, second.Match.Status)
	assert.Empty(t, f.notifier.ResultDisputedCalls)
}

func TestVerify_RejectMovesToDisputed(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "alice", nil, false)
	require.NoError(t, err)

	res, err := f.machine.Verify(match.ID, match.ActionToken, "bob", false, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusDisputed, res.Match.Status)
	require.Len(t, f.notifier.ResultDisputedCalls, 1)

	// Ratings untouched while disputed.
	alice, err := f.store.GetProfile("alice")
	require.NoError(t, err)
	assert.Equal(t, ladder.BaselineRating, alice.Rating)
}

func TestAutoVerify_SystemPathNeedsNoToken(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "alice", nil, false)
	require.NoError(t, err)

	res, err := f.machine.AutoVerify(match.ID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusProcessed, res.Match.Status)

	// A second tick is a no-op.
	res, err = f.machine.AutoVerify(match.ID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotApplicable, res.Outcome)
}

func TestAdminOverride_ResolvesDispute(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "alice", nil, false)
	require.NoError(t, err)
	_, err = f.machine.Verify(match.ID, match.ActionToken, "bob", false, false)
	require.NoError(t, err)

	winner := "bob"
	res, err := f.machine.AdminOverride(match.ID, ladder.StatusProcessed, &winner, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, ladder.StatusProcessed, res.Match.Status)

	bob, err := f.store.GetProfile("bob")
	require.NoError(t, err)
	assert.Equal(t, 1016, bob.Rating)

	// Forcing the same state again is idempotent.
	res, err = f.machine.AdminOverride(match.ID, ladder.StatusProcessed, &winner, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotApplicable, res.Outcome)
}

func TestAdminOverride_CancelAppendsAuditRows(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")

	res, err := f.machine.AdminOverride(match.ID, ladder.StatusCancelled, nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	hist, err := f.store.GetRankHistory("alice")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "Admin override", hist[0].Reason)
}

func TestBulkDeactivate(t *testing.T) {
	f := setup(t, simpleConfig())

	require.NoError(t, f.machine.BulkDeactivate("squash", []string{"bob", "carol"}, false))

	bob, err := f.store.GetProfile("bob")
	require.NoError(t, err)
	assert.True(t, bob.Deactivated)
	assert.Nil(t, bob.LadderRank)

	hist, err := f.store.GetRankHistory("bob")
	require.NoError(t, err)
	require.NotEmpty(t, hist)
	assert.Equal(t, "Deactivated by admin", hist[0].Reason)
}

func TestReinstate_RestoresProfile(t *testing.T) {
	f := setup(t, simpleConfig())
	require.NoError(t, f.machine.BulkDeactivate("squash", []string{"bob"}, false))

	require.NoError(t, f.machine.Reinstate("bob", false))

	bob, err := f.store.GetProfile("bob")
	require.NoError(t, err)
	assert.False(t, bob.Deactivated)
	require.NotNil(t, bob.LadderRank)

	// Reinstating an active profile is a no-op.
	require.NoError(t, f.machine.Reinstate("bob", false))
}

func TestChallenge_CooldownBlocksRematch(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	_, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)
	require.NoError(t, err)
	_, err = f.machine.SubmitResult(match.ID, match.ActionToken, "alice", "alice", nil, false)
	require.NoError(t, err)
	_, err = f.machine.Verify(match.ID, match.ActionToken, "bob", true, false)
	require.NoError(t, err)

	// The processed match is inside the 7 day cooldown, so no rematch yet.
	_, err = f.machine.Challenge("alice", "bob", "", false)
	var verr *ladder.ValidationError
	require.ErrorAs(t, err, &verr)

	// A different opponent is fine.
	res, err := f.machine.Challenge("alice", "carol", "", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
}

func TestAccept_StorageFailureAbortsTransition(t *testing.T) {
	store := ladder.NewMock()
	match := &ladder.Match{
		ID:          "m1",
		SportID:     "squash",
		Player1ID:   "alice",
		Player2ID:   "bob",
		Status:      ladder.StatusChallenged,
		ActionToken: "tok",
	}
	store.GetMatchFunc = func(id string) (*ladder.Match, error) { return match, nil }
	store.GetSportFunc = func(id string) (*ladder.Sport, error) {
		return &ladder.Sport{ID: "squash"}, nil
	}
	store.TransitionMatchFunc = func(id string, from ladder.MatchStatus, upd ladder.MatchUpdate) (*ladder.Match, error) {
		return nil, errors.New("disk full")
	}

	n := notifier.NewMock()
	pub := events.NewMock()
	m := metrics.NewMock()
	machine := New(store, rating.New(store, m), n, pub, m)

	_, err := machine.Accept("m1", "tok", "bob", false)

	require.Error(t, err)
	assert.Empty(t, n.ChallengeAcceptedCalls)
	assert.Empty(t, pub.PublishCalls)
	assert.Zero(t, m.TransitionsApplied())
}

func TestAccept_NotifierFailureDoesNotFailTransition(t *testing.T) {
	f := setup(t, simpleConfig())
	match := f.challenge(t, "alice", "bob")
	f.notifier.Err = errors.New("slack is down")

	res, err := f.machine.Accept(match.ID, match.ActionToken, "bob", false)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	stored, err := f.store.GetMatch(match.ID)
	require.NoError(t, err)
	assert.Equal(t, ladder.StatusPending, stored.Status)
}

func TestChallenge_PublisherFailureDoesNotFailTransition(t *testing.T) {
	f := setup(t, simpleConfig())
	f.events.PublishFunc = func(event events.EventType, payload any) error {
		return errors.New("pubsub unavailable")
	}

	res, err := f.machine.Challenge("alice", "bob", "", false)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 1, f.metrics.EventsFailed())
}
