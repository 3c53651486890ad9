// Package scheduler runs the daily sweep: reminders, auto-verification and
// inactivity enforcement. Decisions are computed by a pure plan step from
// persisted state only, so a re-run after a partial failure never double-acts.
package scheduler

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/mauv0809/refactored-ladder/internal/events"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/metrics"
	"github.com/mauv0809/refactored-ladder/internal/notifier"
)

// Sweeper performs the periodic maintenance scan over every sport.
type Sweeper struct {
	store    Store
	machine  Lifecycle
	ratings  RatingEngine
	notifier notifier.Notifier
	events   events.Publisher
	metrics  metrics.Metrics
}

// New creates a sweeper.
func New(store Store, machine Lifecycle, ratings RatingEngine, n notifier.Notifier, pub events.Publisher, m metrics.Metrics) *Sweeper {
	return &Sweeper{
		store:    store,
		machine:  machine,
		ratings:  ratings,
		notifier: n,
		events:   pub,
		metrics:  m,
	}
}

// Start schedules the daily sweep with gocron and returns the scheduler so
// the caller can shut it down.
func Start(sweeper *Sweeper) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			sweeper.Sweep(time.Now().UTC(), false)
		}),
	)
	if err != nil {
		return nil, err
	}
	sched.Start()
	log.Info("Sweep scheduled", "interval", "24h")
	return sched, nil
}

// Sweep scans every sport, plans the required actions and applies them.
// With dryRun set it logs what would happen without writing anything.
func (s *Sweeper) Sweep(now time.Time, dryRun bool) {
	s.metrics.IncSweepRuns()
	sports, err := s.store.ListSports()
	if err != nil {
		log.Error("Sweep failed to list sports", "error", err)
		return
	}

	total := 0
	for _, sport := range sports {
		matches, err := s.store.GetMatchesBySport(sport.ID)
		if err != nil {
			log.Error("Sweep failed to load matches", "sport", sport.ID, "error", err)
			continue
		}
		profiles, err := s.store.GetProfiles(sport.ID)
		if err != nil {
			log.Error("Sweep failed to load profiles", "sport", sport.ID, "error", err)
			continue
		}

		actions := plan(sport, matches, profiles, now)
		for _, a := range actions {
			if sport.IsPaused && suspendedWhilePaused(a.Kind) {
				log.Info("Skipping action for paused sport", "kind", a.Kind, "sport", sport.ID)
				continue
			}
			if err := s.apply(a, now, dryRun); err != nil {
				log.Error("Sweep action failed", "kind", a.Kind, "match", a.MatchID, "profile", a.ProfileID, "error", err)
			}
			total++
		}
	}
	log.Info("Sweep finished", "sports", len(sports), "actions", total, "dryRun", dryRun)
}

// suspendedWhilePaused reports whether an action kind is held back while its
// sport is paused. A pause freezes new challenges only: challenge nudges
// point at an Accept that would be rejected, and the inactivity clock stops
// because players cannot start new matches. Accepted or reported matches
// keep moving through warnings and auto-verification.
func suspendedWhilePaused(kind ActionKind) bool {
	switch kind {
	case ActionChallengeNudge, ActionInactivityWarning, ActionInactivityPenalty,
		ActionRemovalWarning, ActionRemoval:
		return true
	}
	return false
}

// plan is the pure decision step. It reads only its arguments and decides
// which actions are due, guarded by the persisted watermarks.
func plan(sport *ladder.Sport, matches []*ladder.Match, profiles []*ladder.PlayerProfile, now time.Time) []Action {
	cfg := sport.ScoringConfig.Normalize()
	var actions []Action

	for _, m := range matches {
		switch m.Status {
		case ladder.StatusChallenged:
			if now.Sub(m.CreatedAt) >= ChallengeNudgeAfterDays*24*time.Hour && m.DefenderNudgedAt == nil {
				actions = append(actions, Action{Kind: ActionChallengeNudge, SportID: sport.ID, MatchID: m.ID})
			}

		case ladder.StatusPending:
			if m.AcceptedAt == nil {
				continue
			}
			if now.Sub(*m.AcceptedAt) >= PendingNudgeAfterDays*24*time.Hour && m.PartiesNudgedAt == nil {
				actions = append(actions, Action{Kind: ActionPendingNudge, SportID: sport.ID, MatchID: m.ID})
			}
			deadline := m.AcceptedAt.AddDate(0, 0, cfg.ChallengeWindowDays)
			if now.After(deadline.Add(-WarningLeadTime)) && m.ForfeitWarnedAt == nil {
				actions = append(actions, Action{Kind: ActionForfeitWarning, SportID: sport.ID, MatchID: m.ID, Deadline: deadline})
			}

		case ladder.StatusProcessing:
			if m.ReportedAt == nil {
				continue
			}
			if now.Sub(*m.ReportedAt) >= time.Duration(cfg.AutoVerifyWindowDays)*24*time.Hour {
				actions = append(actions, Action{Kind: ActionAutoVerify, SportID: sport.ID, MatchID: m.ID})
			}
		}
	}

	for _, p := range profiles {
		if p.Deactivated {
			continue
		}
		lastActive := lastActivity(p, matches)

		if cfg.PenaltyDays > 0 {
			threshold := lastActive.AddDate(0, 0, cfg.PenaltyDays)
			if now.After(threshold.Add(-WarningLeadTime)) && now.Before(threshold) && stale(p.PenaltyWarnedAt, lastActive) {
				actions = append(actions, Action{Kind: ActionInactivityWarning, SportID: sport.ID, ProfileID: p.ID, Deadline: threshold})
			}
			if !now.Before(threshold) && stale(p.LastPenaltyAt, lastActive) {
				actions = append(actions, Action{Kind: ActionInactivityPenalty, SportID: sport.ID, ProfileID: p.ID, Deadline: threshold})
			}
		}

		if cfg.RemovalDays > 0 {
			threshold := lastActive.AddDate(0, 0, cfg.RemovalDays)
			if now.After(threshold.Add(-WarningLeadTime)) && now.Before(threshold) && stale(p.RemovalWarnedAt, lastActive) {
				actions = append(actions, Action{Kind: ActionRemovalWarning, SportID: sport.ID, ProfileID: p.ID, Deadline: threshold})
			}
			if !now.Before(threshold) {
				actions = append(actions, Action{Kind: ActionRemoval, SportID: sport.ID, ProfileID: p.ID, Deadline: threshold})
			}
		}
	}

	return actions
}

// lastActivity is the profile's most recent processed match, or its join
// time if it has never played.
func lastActivity(p *ladder.PlayerProfile, matches []*ladder.Match) time.Time {
	last := p.CreatedAt
	for _, m := range matches {
		if m.Status != ladder.StatusProcessed || !m.Involves(p.ID) {
			continue
		}
		if m.UpdatedAt.After(last) {
			last = m.UpdatedAt
		}
	}
	return last
}

// stale reports whether a watermark has not fired since the player's last
// activity. A fresh match resets the epoch, so a later crossing fires again.
func stale(mark *time.Time, lastActive time.Time) bool {
	return mark == nil || mark.Before(lastActive)
}

// apply is the effect step for a single planned action.
func (s *Sweeper) apply(a Action, now time.Time, dryRun bool) error {
	switch a.Kind {
	case ActionChallengeNudge:
		m, err := s.store.GetMatch(a.MatchID)
		if err != nil {
			return err
		}
		defender, err := s.store.GetProfile(m.Player2ID)
		if err != nil {
			return err
		}
		if err := s.notifier.ChallengeNudge(m, defender, dryRun); err != nil {
			return err
		}
		if dryRun {
			return nil
		}
		return s.store.MarkDefenderNudged(a.MatchID, now)

	case ActionPendingNudge:
		m, p1, p2, err := s.matchParties(a.MatchID)
		if err != nil {
			return err
		}
		if err := s.notifier.PendingNudge(m, p1, p2, dryRun); err != nil {
			return err
		}
		if dryRun {
			return nil
		}
		return s.store.MarkPartiesNudged(a.MatchID, now)

	case ActionForfeitWarning:
		m, p1, p2, err := s.matchParties(a.MatchID)
		if err != nil {
			return err
		}
		if err := s.notifier.ForfeitWarning(m, p1, p2, a.Deadline, dryRun); err != nil {
			return err
		}
		if dryRun {
			return nil
		}
		return s.store.MarkForfeitWarned(a.MatchID, now)

	case ActionAutoVerify:
		res, err := s.machine.AutoVerify(a.MatchID, dryRun)
		if err != nil {
			return err
		}
		log.Info("Auto-verify", "match", a.MatchID, "outcome", res.Outcome)
		return nil

	case ActionInactivityWarning:
		p, err := s.store.GetProfile(a.ProfileID)
		if err != nil {
			return err
		}
		if err := s.notifier.InactivityWarning(p, a.Deadline, dryRun); err != nil {
			return err
		}
		if dryRun {
			return nil
		}
		return s.store.MarkPenaltyWarned(a.ProfileID, now)

	case ActionInactivityPenalty:
		return s.applyPenalty(a, now, dryRun)

	case ActionRemovalWarning:
		p, err := s.store.GetProfile(a.ProfileID)
		if err != nil {
			return err
		}
		if err := s.notifier.RemovalWarning(p, a.Deadline, dryRun); err != nil {
			return err
		}
		if dryRun {
			return nil
		}
		return s.store.MarkRemovalWarned(a.ProfileID, now)

	case ActionRemoval:
		return s.applyRemoval(a, now, dryRun)
	}
	return nil
}

func (s *Sweeper) matchParties(matchID string) (*ladder.Match, *ladder.PlayerProfile, *ladder.PlayerProfile, error) {
	m, err := s.store.GetMatch(matchID)
	if err != nil {
		return nil, nil, nil, err
	}
	p1, err := s.store.GetProfile(m.Player1ID)
	if err != nil {
		return nil, nil, nil, err
	}
	p2, err := s.store.GetProfile(m.Player2ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, p1, p2, nil
}

// applyPenalty drops the player's rating, guarantees exactly one rank
// history row for the crossing, and stamps the watermark.
func (s *Sweeper) applyPenalty(a Action, now time.Time, dryRun bool) error {
	before, err := s.store.GetProfile(a.ProfileID)
	if err != nil {
		return err
	}
	if dryRun {
		log.Info("[Dry Run] Would apply inactivity penalty", "profile", a.ProfileID, "rating", before.Rating)
		return nil
	}

	if err := s.ratings.ApplyPenalty(a.ProfileID, -PenaltyRatingDrop, ReasonInactivityPenalty); err != nil {
		return err
	}
	after, err := s.store.GetProfile(a.ProfileID)
	if err != nil {
		return err
	}
	// The rerank only records players whose rank moved. If the penalty left
	// the rank unchanged the crossing still gets its audit row.
	if rankEqual(before.LadderRank, after.LadderRank) {
		if err := s.store.AppendRankHistory(&ladder.RankHistoryEntry{
			PlayerProfileID: a.ProfileID,
			OldRank:         before.LadderRank,
			NewRank:         after.LadderRank,
			Reason:          ReasonInactivityPenalty,
		}); err != nil {
			return err
		}
	}
	if err := s.notifier.InactivityPenalty(after, before.Rating, after.Rating, dryRun); err != nil {
		log.Error("Penalty notification failed", "profile", a.ProfileID, "error", err)
	}
	s.publish(events.EventPlayerPenalised, a, dryRun)
	return s.store.MarkPenaltyApplied(a.ProfileID, now)
}

// applyRemoval deactivates the player, keeps the audit trail and reranks the
// rest of the ladder.
func (s *Sweeper) applyRemoval(a Action, now time.Time, dryRun bool) error {
	p, err := s.store.GetProfile(a.ProfileID)
	if err != nil {
		return err
	}
	if p.Deactivated {
		return nil
	}
	if dryRun {
		log.Info("[Dry Run] Would remove inactive player", "profile", a.ProfileID)
		return nil
	}

	if err := s.store.DeactivateProfile(a.ProfileID, now); err != nil {
		return err
	}
	if err := s.store.AppendRankHistory(&ladder.RankHistoryEntry{
		PlayerProfileID: a.ProfileID,
		OldRank:         p.LadderRank,
		NewRank:         nil,
		Reason:          ReasonInactivityRemoval,
	}); err != nil {
		return err
	}
	if err := s.ratings.Rerank(a.SportID, nil, ReasonInactivityRemoval); err != nil {
		return err
	}
	if err := s.notifier.PlayerRemoved(p, dryRun); err != nil {
		log.Error("Removal notification failed", "profile", a.ProfileID, "error", err)
	}
	s.publish(events.EventPlayerRemoved, a, dryRun)
	return nil
}

func (s *Sweeper) publish(event events.EventType, a Action, dryRun bool) {
	if dryRun {
		return
	}
	payload := map[string]string{"sport_id": a.SportID, "profile_id": a.ProfileID}
	if err := s.events.Publish(event, payload); err != nil {
		s.metrics.IncEventsFailed()
		log.Error("Failed to publish event", "event", event, "error", err)
		return
	}
	s.metrics.IncEventsPublished()
}

func rankEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
