// Package lifecycle implements the match state machine. Every transition,
// user-driven or scheduler-driven, goes through the same validation and
// history paths here.
package lifecycle

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/refactored-ladder/internal/events"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/metrics"
	"github.com/mauv0809/refactored-ladder/internal/notifier"
	"github.com/mauv0809/refactored-ladder/internal/ranking"
)

// Machine executes match transitions. Transitions commit first; notification
// and event emission are best-effort afterwards and never fail a transition.
type Machine struct {
	store    Store
	ratings  RatingEngine
	notifier notifier.Notifier
	events   events.Publisher
	metrics  metrics.Metrics
}

// New creates a lifecycle machine.
func New(store Store, ratings RatingEngine, n notifier.Notifier, pub events.Publisher, m metrics.Metrics) *Machine {
	return &Machine{
		store:    store,
		ratings:  ratings,
		notifier: n,
		events:   pub,
		metrics:  m,
	}
}

func applied(m *ladder.Match) (*Result, error) {
	return &Result{Outcome: OutcomeApplied, Match: m}, nil
}

func notApplicable(m *ladder.Match) (*Result, error) {
	return &Result{Outcome: OutcomeNotApplicable, Match: m}, nil
}

// rejected counts a business rejection and passes the typed error through.
func (m *Machine) rejected(err error) (*Result, error) {
	m.metrics.IncTransitionsRejected()
	return nil, err
}

// authorize compares the presented capability token against the match's.
func authorize(match *ladder.Match, token string) error {
	if token == "" || token != match.ActionToken {
		return &ladder.AuthorizationError{Reason: "token mismatch"}
	}
	return nil
}

// transition runs a CAS status update. A lost race comes back as
// (current match, false, nil): the caller reports "not applicable".
func (m *Machine) transition(matchID string, from ladder.MatchStatus, upd ladder.MatchUpdate) (*ladder.Match, bool, error) {
	updated, err := m.store.TransitionMatch(matchID, from, upd)
	if err != nil {
		var pre *ladder.PreconditionError
		if errors.As(err, &pre) {
			current, gerr := m.store.GetMatch(matchID)
			if gerr != nil {
				return nil, false, gerr
			}
			return current, false, nil
		}
		return nil, false, err
	}
	m.metrics.IncTransitionsApplied()
	return updated, true, nil
}

func (m *Machine) notify(event string, fn func() error) {
	if err := fn(); err != nil {
		log.Error("Notification failed", "event", event, "error", err)
	}
}

func (m *Machine) publish(event events.EventType, payload any, dryRun bool) {
	if dryRun {
		log.Info("[Dry Run] Would publish event", "event", event)
		return
	}
	if err := m.events.Publish(event, payload); err != nil {
		m.metrics.IncEventsFailed()
		log.Error("Failed to publish event", "event", event, "error", err)
		return
	}
	m.metrics.IncEventsPublished()
}

// participants loads both profiles for notification context. Failures are
// logged and surface as nils; callers skip the notification then.
func (m *Machine) participants(match *ladder.Match) (*ladder.PlayerProfile, *ladder.PlayerProfile) {
	p1, err := m.store.GetProfile(match.Player1ID)
	if err != nil {
		log.Error("Failed to load profile for notification", "profile", match.Player1ID, "error", err)
		return nil, nil
	}
	p2, err := m.store.GetProfile(match.Player2ID)
	if err != nil {
		log.Error("Failed to load profile for notification", "profile", match.Player2ID, "error", err)
		return nil, nil
	}
	return p1, p2
}

// Challenge creates a new CHALLENGED match after checking for an active match
// between the pair, eligibility and the rematch cooldown. The per-pair
// uniqueness constraint in the database backs the conflict check up against
// racing creations.
func (m *Machine) Challenge(challengerID, defenderID, message string, dryRun bool) (*Result, error) {
	challenger, err := m.store.GetProfile(challengerID)
	if err != nil {
		return nil, err
	}
	defender, err := m.store.GetProfile(defenderID)
	if err != nil {
		return nil, err
	}
	if challenger.SportID != defender.SportID {
		return m.rejected(&ladder.ValidationError{Field: "defender_id", Reason: "players are on different ladders"})
	}
	if challenger.Deactivated {
		return m.rejected(&ladder.ValidationError{Field: "challenger_id", Reason: "challenger is deactivated"})
	}

	sport, err := m.store.GetSport(challenger.SportID)
	if err != nil {
		return nil, err
	}
	if sport.IsPaused {
		return m.rejected(&ladder.ValidationError{Field: "sport_id", Reason: "sport is paused"})
	}
	cfg := sport.ScoringConfig.Normalize()

	now := time.Now().UTC()
	history, err := m.store.GetMatchesInvolving(challengerID, time.Time{})
	if err != nil {
		return nil, err
	}
	for _, h := range history {
		if !h.Status.Terminal() && h.Involves(defenderID) {
			return m.rejected(&ladder.ConflictError{Reason: "an active match already exists for this pair"})
		}
	}
	recent := ranking.CooldownOpponents(history, challengerID, cfg.RematchCooldownDays, now)

	profiles, err := m.store.GetProfiles(sport.ID)
	if err != nil {
		return nil, err
	}
	eligible := ranking.EligibleOpponents(profiles, challenger, cfg, sport.IsPaused, recent)
	found := false
	for _, p := range eligible {
		if p.ID == defenderID {
			found = true
			break
		}
	}
	if !found {
		return m.rejected(&ladder.ValidationError{Field: "defender_id", Reason: "opponent is not eligible for a challenge"})
	}

	match := &ladder.Match{
		ID:          uuid.NewString(),
		SportID:     sport.ID,
		Player1ID:   challengerID,
		Player2ID:   defenderID,
		Status:      ladder.StatusChallenged,
		ActionToken: uuid.NewString(),
		Message:     message,
	}
	if dryRun {
		log.Info("[Dry Run] Would create challenge", "challenger", challengerID, "defender", defenderID)
		return applied(match)
	}
	if err := m.store.CreateMatch(match); err != nil {
		var conflict *ladder.ConflictError
		if errors.As(err, &conflict) {
			return m.rejected(err)
		}
		return nil, err
	}
	m.metrics.IncTransitionsApplied()
	log.Info("Challenge created", "match", match.ID, "challenger", challenger.Name, "defender", defender.Name)

	m.notify("challenge.created", func() error {
		return m.notifier.ChallengeCreated(match, challenger, defender, dryRun)
	})
	m.publish(events.EventChallengeCreated, matchPayload(match), dryRun)
	return applied(match)
}

// Accept moves CHALLENGED to PENDING. Only the defender may accept.
func (m *Machine) Accept(matchID, token, actorID string, dryRun bool) (*Result, error) {
	match, err := m.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(match, token); err != nil {
		return m.rejected(err)
	}
	if actorID != match.Player2ID {
		return m.rejected(&ladder.AuthorizationError{Reason: "only the defender may accept"})
	}
	if match.Status != ladder.StatusChallenged {
		return notApplicable(match)
	}

	sport, err := m.store.GetSport(match.SportID)
	if err != nil {
		return nil, err
	}
	if sport.IsPaused {
		return m.rejected(&ladder.ValidationError{Field: "sport_id", Reason: "sport is paused"})
	}

	if dryRun {
		log.Info("[Dry Run] Would accept challenge", "match", matchID)
		return applied(match)
	}

	now := time.Now().UTC()
	updated, ok, err := m.transition(matchID, ladder.StatusChallenged, ladder.MatchUpdate{
		Status:     ladder.StatusPending,
		AcceptedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return notApplicable(updated)
	}
	log.Info("Challenge accepted", "match", matchID)

	if challenger, defender := m.participants(updated); challenger != nil {
		m.notify("challenge.accepted", func() error {
			return m.notifier.ChallengeAccepted(updated, challenger, defender, dryRun)
		})
	}
	m.publish(events.EventChallengeAccepted, matchPayload(updated), dryRun)
	return applied(updated)
}

// Withdraw cancels a CHALLENGED match. Only the challenger may withdraw.
func (m *Machine) Withdraw(matchID, token, actorID string, dryRun bool) (*Result, error) {
	match, err := m.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(match, token); err != nil {
		return m.rejected(err)
	}
	if actorID != match.Player1ID {
		return m.rejected(&ladder.AuthorizationError{Reason: "only the challenger may withdraw"})
	}
	if match.Status != ladder.StatusChallenged {
		return notApplicable(match)
	}

	if dryRun {
		log.Info("[Dry Run] Would withdraw challenge", "match", matchID)
		return applied(match)
	}

	updated, ok, err := m.transition(matchID, ladder.StatusChallenged, ladder.MatchUpdate{
		Status: ladder.StatusCancelled,
		Scores: &ladder.ScoreSheet{Reason: ladder.ReasonWithdrawn, WithdrawnBy: actorID},
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return notApplicable(updated)
	}
	log.Info("Challenge withdrawn", "match", matchID)

	m.publish(events.EventMatchCancelled, matchPayload(updated), dryRun)
	return applied(updated)
}

// Decline lets the defender forfeit a CHALLENGED match without playing.
// The challenger wins and the result is rated like any other.
func (m *Machine) Decline(matchID, token, actorID string, dryRun bool) (*Result, error) {
	match, err := m.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(match, token); err != nil {
		return m.rejected(err)
	}
	if actorID != match.Player2ID {
		return m.rejected(&ladder.AuthorizationError{Reason: "only the defender may decline"})
	}
	if match.Status != ladder.StatusChallenged {
		return notApplicable(match)
	}

	if dryRun {
		log.Info("[Dry Run] Would decline challenge", "match", matchID)
		return applied(match)
	}

	winner := match.Player1ID
	updated, ok, err := m.transition(matchID, ladder.StatusChallenged, ladder.MatchUpdate{
		Status:   ladder.StatusProcessed,
		WinnerID: &winner,
		Scores:   &ladder.ScoreSheet{Reason: ladder.ReasonForfeit, ForfeitedBy: actorID},
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return notApplicable(updated)
	}
	log.Info("Challenge declined, forfeit to challenger", "match", matchID)

	if err := m.processAndAnnounce(updated, dryRun); err != nil {
		return nil, err
	}
	return applied(updated)
}

// Forfeit lets either party concede a PENDING match. The other party wins.
func (m *Machine) Forfeit(matchID, token, actorID string, dryRun bool) (*Result, error) {
	match, err := m.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(match, token); err != nil {
		return m.rejected(err)
	}
	if !match.Involves(actorID) {
		return m.rejected(&ladder.AuthorizationError{Reason: "actor is not a participant"})
	}
	if match.Status != ladder.StatusPending {
		return notApplicable(match)
	}

	if dryRun {
		log.Info("[Dry Run] Would forfeit match", "match", matchID, "by", actorID)
		return applied(match)
	}

	winner := match.Opponent(actorID)
	updated, ok, err := m.transition(matchID, ladder.StatusPending, ladder.MatchUpdate{
		Status:   ladder.StatusProcessed,
		WinnerID: &winner,
		Scores:   &ladder.ScoreSheet{Reason: ladder.ReasonForfeit, ForfeitedBy: actorID},
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return notApplicable(updated)
	}
	log.Info("Match forfeited", "match", matchID, "by", actorID)

	if err := m.processAndAnnounce(updated, dryRun); err != nil {
		return nil, err
	}
	return applied(updated)
}

// SubmitResult moves PENDING to PROCESSING. For sets scoring the winner is
// derived from the scores; for simple scoring the caller names the winner.
func (m *Machine) SubmitResult(matchID, token, reporterID, winnerID string, sets []ladder.SetScore, dryRun bool) (*Result, error) {
	match, err := m.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(match, token); err != nil {
		return m.rejected(err)
	}
	if !match.Involves(reporterID) {
		return m.rejected(&ladder.AuthorizationError{Reason: "reporter is not a participant"})
	}
	if match.Status != ladder.StatusPending {
		return notApplicable(match)
	}

	sport, err := m.store.GetSport(match.SportID)
	if err != nil {
		return nil, err
	}
	cfg := sport.ScoringConfig.Normalize()

	var winner string
	var scores *ladder.ScoreSheet
	switch cfg.Type {
	case ladder.ScoringSets:
		winner, err = deriveSetsWinner(match, sets, cfg)
		if err != nil {
			return m.rejected(err)
		}
		scores = &ladder.ScoreSheet{Sets: sets}
	default:
		if !match.Involves(winnerID) {
			return m.rejected(&ladder.ValidationError{Field: "winner_id", Reason: "winner must be a participant"})
		}
		winner = winnerID
		if len(sets) > 0 {
			scores = &ladder.ScoreSheet{Sets: sets}
		}
	}

	if dryRun {
		log.Info("[Dry Run] Would submit result", "match", matchID, "winner", winner)
		return applied(match)
	}

	now := time.Now().UTC()
	updated, ok, err := m.transition(matchID, ladder.StatusPending, ladder.MatchUpdate{
		Status:     ladder.StatusProcessing,
		WinnerID:   &winner,
		ReportedBy: &reporterID,
		ReportedAt: &now,
		Scores:     scores,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return notApplicable(updated)
	}
	log.Info("Result reported", "match", matchID, "reporter", reporterID, "winner", winner)

	reporter, err := m.store.GetProfile(reporterID)
	if err == nil {
		opponent, oerr := m.store.GetProfile(updated.Opponent(reporterID))
		if oerr == nil {
			m.notify("result.reported", func() error {
				return m.notifier.ResultReported(updated, reporter, opponent, dryRun)
			})
		}
	}
	m.publish(events.EventResultReported, matchPayload(updated), dryRun)
	return applied(updated)
}

// Verify resolves a PROCESSING match: accept finalizes it and triggers the
// rating update, reject moves it to DISPUTED for admin resolution. The
// reporter cannot verify their own report. Two racing verifies resolve to
// exactly one terminal status via the CAS transition.
func (m *Machine) Verify(matchID, token, actorID string, accept bool, dryRun bool) (*Result, error) {
	match, err := m.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(match, token); err != nil {
		return m.rejected(err)
	}
	if !match.Involves(actorID) {
		return m.rejected(&ladder.AuthorizationError{Reason: "actor is not a participant"})
	}
	if match.ReportedBy != nil && actorID == *match.ReportedBy {
		return m.rejected(&ladder.AuthorizationError{Reason: "the reporter cannot verify their own report"})
	}
	if match.Status != ladder.StatusProcessing {
		return notApplicable(match)
	}

	if dryRun {
		log.Info("[Dry Run] Would verify result", "match", matchID, "accept", accept)
		return applied(match)
	}

	if !accept {
		updated, ok, err := m.transition(matchID, ladder.StatusProcessing, ladder.MatchUpdate{
			Status: ladder.StatusDisputed,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return notApplicable(updated)
		}
		log.Info("Result disputed", "match", matchID, "by", actorID)

		if disputer, derr := m.store.GetProfile(actorID); derr == nil {
			m.notify("result.disputed", func() error {
				return m.notifier.ResultDisputed(updated, disputer, dryRun)
			})
		}
		m.publish(events.EventMatchDisputed, matchPayload(updated), dryRun)
		return applied(updated)
	}

	updated, ok, err := m.transition(matchID, ladder.StatusProcessing, ladder.MatchUpdate{
		Status: ladder.StatusProcessed,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return notApplicable(updated)
	}
	log.Info("Result verified", "match", matchID, "by", actorID)

	if err := m.processAndAnnounce(updated, dryRun); err != nil {
		return nil, err
	}
	return applied(updated)
}

// AutoVerify is the scheduler's verify path: same effect as an accepting
// verify, attributed to the system, no capability token involved.
func (m *Machine) AutoVerify(matchID string, dryRun bool) (*Result, error) {
	match, err := m.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != ladder.StatusProcessing {
		return notApplicable(match)
	}

	if dryRun {
		log.Info("[Dry Run] Would auto-verify result", "match", matchID)
		return applied(match)
	}

	updated, ok, err := m.transition(matchID, ladder.StatusProcessing, ladder.MatchUpdate{
		Status: ladder.StatusProcessed,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return notApplicable(updated)
	}
	log.Info("Result auto-verified", "match", matchID, "by", SystemIdentity)

	if err := m.processAndAnnounce(updated, dryRun); err != nil {
		return nil, err
	}
	return applied(updated)
}

// processAndAnnounce runs the rating update for a freshly PROCESSED match and
// emits the result notifications.
func (m *Machine) processAndAnnounce(match *ladder.Match, dryRun bool) error {
	if err := m.ratings.ProcessMatch(match.ID); err != nil {
		return err
	}
	if match.WinnerID != nil {
		winner, werr := m.store.GetProfile(*match.WinnerID)
		loser, lerr := m.store.GetProfile(match.Opponent(*match.WinnerID))
		if werr == nil && lerr == nil {
			m.notify("result.verified", func() error {
				return m.notifier.ResultVerified(match, winner, loser, dryRun)
			})
		}
	}
	m.publish(events.EventMatchProcessed, matchPayload(match), dryRun)
	return nil
}

// AdminOverride force-sets a match's status and winner. It skips the normal
// precondition checks but stays idempotent and auditable: forcing the state
// the match is already in is a no-op, and every force appends history rows.
func (m *Machine) AdminOverride(matchID string, status ladder.MatchStatus, winnerID *string, dryRun bool) (*Result, error) {
	match, err := m.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if match.Status == status && strPtrEqual(match.WinnerID, winnerID) {
		return notApplicable(match)
	}
	if winnerID != nil && !match.Involves(*winnerID) {
		return m.rejected(&ladder.ValidationError{Field: "winner_id", Reason: "winner must be a participant"})
	}

	if dryRun {
		log.Info("[Dry Run] Would force match", "match", matchID, "status", status)
		return applied(match)
	}

	updated, err := m.store.ForceMatch(matchID, ladder.MatchUpdate{
		Status:   status,
		WinnerID: winnerID,
	})
	if err != nil {
		return nil, err
	}
	m.metrics.IncTransitionsApplied()
	log.Warn("Admin override applied", "match", matchID, "from", match.Status, "to", status)

	if status == ladder.StatusProcessed && updated.WinnerID != nil {
		if err := m.processAndAnnounce(updated, dryRun); err != nil {
			return nil, err
		}
		return applied(updated)
	}

	// No rating update to carry the audit trail, so write it explicitly.
	for _, profileID := range []string{updated.Player1ID, updated.Player2ID} {
		p, perr := m.store.GetProfile(profileID)
		if perr != nil {
			return nil, perr
		}
		entry := &ladder.RankHistoryEntry{
			PlayerProfileID: profileID,
			MatchID:         &updated.ID,
			OldRank:         p.LadderRank,
			NewRank:         p.LadderRank,
			Reason:          "Admin override",
		}
		if err := m.store.AppendRankHistory(entry); err != nil {
			return nil, err
		}
	}
	if status == ladder.StatusCancelled {
		m.publish(events.EventMatchCancelled, matchPayload(updated), dryRun)
	}
	return applied(updated)
}

// Register creates or refreshes a profile and reranks the sport so the
// newcomer shows up at the bottom of the ladder.
func (m *Machine) Register(p *ladder.PlayerProfile, dryRun bool) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Rating == 0 {
		p.Rating = ladder.BaselineRating
	}
	if dryRun {
		log.Info("[Dry Run] Would register profile", "profile", p.ID, "sport", p.SportID)
		return nil
	}
	if err := m.store.UpsertProfile(p); err != nil {
		return err
	}
	return m.ratings.Rerank(p.SportID, nil, "Joined ladder")
}

// Reinstate reactivates a deactivated profile. The rating is retained; the
// rank comes from the rerank that follows.
func (m *Machine) Reinstate(profileID string, dryRun bool) error {
	p, err := m.store.GetProfile(profileID)
	if err != nil {
		return err
	}
	if !p.Deactivated {
		return nil
	}
	if dryRun {
		log.Info("[Dry Run] Would reinstate profile", "profile", profileID)
		return nil
	}
	if err := m.store.ReinstateProfile(profileID); err != nil {
		return err
	}
	log.Info("Profile reinstated", "profile", profileID, "sport", p.SportID)
	return m.ratings.Rerank(p.SportID, nil, "Reinstated")
}

// BulkDeactivate removes a batch of profiles from the ladder, appending an
// audit row per player, then reranks once.
func (m *Machine) BulkDeactivate(sportID string, profileIDs []string, dryRun bool) error {
	now := time.Now().UTC()
	changed := false
	for _, id := range profileIDs {
		p, err := m.store.GetProfile(id)
		if err != nil {
			return err
		}
		if p.SportID != sportID {
			return &ladder.ValidationError{Field: "profile_ids", Reason: "profile " + id + " belongs to another sport"}
		}
		if p.Deactivated {
			continue
		}
		if dryRun {
			log.Info("[Dry Run] Would deactivate profile", "profile", id)
			continue
		}
		if err := m.store.DeactivateProfile(id, now); err != nil {
			return err
		}
		if err := m.store.AppendRankHistory(&ladder.RankHistoryEntry{
			PlayerProfileID: id,
			OldRank:         p.LadderRank,
			NewRank:         nil,
			Reason:          "Deactivated by admin",
		}); err != nil {
			return err
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return m.ratings.Rerank(sportID, nil, "Deactivated by admin")
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
