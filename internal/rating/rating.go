// Package rating applies Elo updates when matches finish and can rebuild a
// whole sport's ratings from the match ledger.
package rating

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/metrics"
	"github.com/mauv0809/refactored-ladder/internal/ranking"
)

// K is the Elo K-factor. 32 keeps a small ladder responsive: a player is
// never more than a handful of matches away from their true position.
const K = 32

// History entry reasons written by this package.
const (
	ReasonMatchResult = "Match result"
	ReasonRecompute   = "Recompute"
)

// Engine applies rating updates and keeps the derived ranks in sync.
type Engine struct {
	store   Store
	metrics metrics.Metrics
}

// New creates a rating engine.
func New(store Store, metrics metrics.Metrics) *Engine {
	return &Engine{
		store:   store,
		metrics: metrics,
	}
}

// Expected is the standard Elo expected score for a player rated a against
// an opponent rated b.
func Expected(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// delta is the points transferred from loser to winner. Rounding once and
// applying the same amount to both sides keeps the pool zero-sum.
func delta(winnerRating, loserRating int) int {
	return int(math.Round(K * (1.0 - Expected(winnerRating, loserRating))))
}

// ProcessMatch applies the rating update for a processed match: both players'
// ratings move by the same amount, both ledgers get their rows, and the
// sport's ranks are recomputed.
func (e *Engine) ProcessMatch(matchID string) error {
	m, err := e.store.GetMatch(matchID)
	if err != nil {
		return err
	}
	if m.Status != ladder.StatusProcessed {
		return &ladder.ValidationError{Reason: fmt.Sprintf("match %s is %s, not processed", m.ID, m.Status)}
	}
	if m.WinnerID == nil {
		return &ladder.ValidationError{Reason: fmt.Sprintf("match %s has no winner", m.ID)}
	}

	winner, err := e.store.GetProfile(*m.WinnerID)
	if err != nil {
		return err
	}
	loser, err := e.store.GetProfile(m.Opponent(*m.WinnerID))
	if err != nil {
		return err
	}

	d := delta(winner.Rating, loser.Rating)
	log.Info("Applying rating update", "match", m.ID, "winner", winner.Name, "loser", loser.Name, "delta", d)

	if err := e.applyUpdate(winner, winner.Rating+d, &m.ID, ReasonMatchResult); err != nil {
		return err
	}
	if err := e.applyUpdate(loser, loser.Rating-d, &m.ID, ReasonMatchResult); err != nil {
		return err
	}
	e.metrics.IncRatingUpdates()

	return e.Rerank(m.SportID, &m.ID, ReasonMatchResult)
}

// applyUpdate persists a single player's new rating and its ledger row, and
// bumps their match count.
func (e *Engine) applyUpdate(p *ladder.PlayerProfile, newRating int, matchID *string, reason string) error {
	if err := e.store.SetRating(p.ID, newRating, p.MatchesPlayed+1); err != nil {
		return err
	}
	return e.store.AppendRatingHistory(&ladder.RatingHistoryEntry{
		PlayerProfileID: p.ID,
		MatchID:         matchID,
		OldRating:       p.Rating,
		NewRating:       newRating,
		Delta:           newRating - p.Rating,
		Reason:          reason,
	})
}

// ApplyPenalty moves a player's rating without a match, appending a ledger
// row with the given reason. Used for inactivity penalties and admin
// adjustments. The match count does not change.
func (e *Engine) ApplyPenalty(profileID string, amount int, reason string) error {
	p, err := e.store.GetProfile(profileID)
	if err != nil {
		return err
	}
	newRating := p.Rating + amount
	if err := e.store.SetRating(p.ID, newRating, p.MatchesPlayed); err != nil {
		return err
	}
	if err := e.store.AppendRatingHistory(&ladder.RatingHistoryEntry{
		PlayerProfileID: p.ID,
		OldRating:       p.Rating,
		NewRating:       newRating,
		Delta:           amount,
		Reason:          reason,
	}); err != nil {
		return err
	}
	e.metrics.IncRatingUpdates()
	return e.Rerank(p.SportID, nil, reason)
}

// Rerank recomputes the sport's dense ranks from current ratings, persists
// them, and appends rank history rows for every player whose rank moved.
func (e *Engine) Rerank(sportID string, matchID *string, reason string) error {
	profiles, err := e.store.GetProfiles(sportID)
	if err != nil {
		return err
	}

	placements := ranking.ComputeRanks(profiles)
	ranks := ranking.RankMap(profiles, placements)
	if err := e.store.SetRanks(sportID, ranks); err != nil {
		return err
	}

	for _, p := range profiles {
		newRank := ranks[p.ID]
		if rankEqual(p.LadderRank, newRank) {
			continue
		}
		entry := &ladder.RankHistoryEntry{
			PlayerProfileID: p.ID,
			MatchID:         matchID,
			OldRank:         p.LadderRank,
			NewRank:         newRank,
			Reason:          reason,
		}
		if err := e.store.AppendRankHistory(entry); err != nil {
			return err
		}
	}
	return nil
}

func rankEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RecomputeAll rebuilds a sport's ratings from scratch: everyone back to the
// baseline, both ledgers cleared, then every processed match replayed in
// order. Running it twice in a row yields identical state. Deactivation
// metadata is left untouched, so deactivated players keep their history but
// stay unranked.
func (e *Engine) RecomputeAll(sportID string) error {
	start := time.Now()
	log.Info("Rebuilding ratings", "sport", sportID)

	if err := e.store.ResetRatings(sportID, ladder.BaselineRating); err != nil {
		return err
	}
	if err := e.store.ClearHistory(sportID); err != nil {
		return err
	}

	profiles, err := e.store.GetProfiles(sportID)
	if err != nil {
		return err
	}
	ratings := make(map[string]int, len(profiles))
	played := make(map[string]int, len(profiles))
	for _, p := range profiles {
		ratings[p.ID] = ladder.BaselineRating
	}

	matches, err := e.store.GetProcessedMatches(sportID)
	if err != nil {
		return err
	}

	for _, m := range matches {
		if m.WinnerID == nil {
			continue
		}
		winnerID := *m.WinnerID
		loserID := m.Opponent(winnerID)
		if _, ok := ratings[winnerID]; !ok {
			log.Warn("Skipping match with unknown winner", "match", m.ID, "winner", winnerID)
			continue
		}
		if _, ok := ratings[loserID]; !ok {
			log.Warn("Skipping match with unknown loser", "match", m.ID, "loser", loserID)
			continue
		}

		d := delta(ratings[winnerID], ratings[loserID])
		matchID := m.ID
		for _, upd := range []struct {
			profileID string
			change    int
		}{
			{winnerID, d},
			{loserID, -d},
		} {
			old := ratings[upd.profileID]
			ratings[upd.profileID] = old + upd.change
			played[upd.profileID]++
			if err := e.store.AppendRatingHistory(&ladder.RatingHistoryEntry{
				PlayerProfileID: upd.profileID,
				MatchID:         &matchID,
				OldRating:       old,
				NewRating:       old + upd.change,
				Delta:           upd.change,
				Reason:          ReasonRecompute,
			}); err != nil {
				return err
			}
		}
		e.metrics.IncRatingUpdates()
	}

	for _, p := range profiles {
		if err := e.store.SetRating(p.ID, ratings[p.ID], played[p.ID]); err != nil {
			return err
		}
	}

	if err := e.Rerank(sportID, nil, ReasonRecompute); err != nil {
		return err
	}

	elapsed := time.Since(start)
	e.metrics.ObserveRebuildDuration(elapsed.Seconds())
	log.Info("Rebuild finished", "sport", sportID, "matches", len(matches), "duration", elapsed)
	return nil
}
