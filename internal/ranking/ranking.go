// Package ranking derives the dense per-sport rank ordering from ratings and
// answers challenge-eligibility questions. Everything here is pure: callers
// pass in the current profiles and matches, nothing touches storage.
package ranking

import (
	"sort"
	"time"

	"github.com/mauv0809/refactored-ladder/internal/ladder"
)

// Placement is one profile's derived position on the ladder.
type Placement struct {
	ProfileID string
	Rank      int
}

// ComputeRanks assigns dense ranks 1..N over the non-deactivated profiles of
// a sport, ordered by rating descending. Ties break on earlier join time,
// then on ID so the ordering is fully deterministic. Deactivated profiles are
// excluded and carry no rank.
func ComputeRanks(profiles []*ladder.PlayerProfile) []Placement {
	active := make([]*ladder.PlayerProfile, 0, len(profiles))
	for _, p := range profiles {
		if !p.Deactivated {
			active = append(active, p)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Rating != active[j].Rating {
			return active[i].Rating > active[j].Rating
		}
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})

	placements := make([]Placement, len(active))
	for i, p := range active {
		placements[i] = Placement{ProfileID: p.ID, Rank: i + 1}
	}
	return placements
}

// RankMap converts placements into the profileID -> rank form the store's
// bulk rank writer takes. Profiles absent from the placements map to nil.
func RankMap(profiles []*ladder.PlayerProfile, placements []Placement) map[string]*int {
	ranks := make(map[string]*int, len(profiles))
	for _, p := range profiles {
		ranks[p.ID] = nil
	}
	for _, pl := range placements {
		rank := pl.Rank
		ranks[pl.ProfileID] = &rank
	}
	return ranks
}

// EligibleOpponents filters the sport's profiles down to those `me` may
// challenge right now. A candidate qualifies when it is another, active
// profile whose rank falls inside the configured window and which was not
// faced recently. An unranked challenger (nil rank) has no window at all and
// may challenge anyone; the first played match establishes a rank.
func EligibleOpponents(profiles []*ladder.PlayerProfile, me *ladder.PlayerProfile, cfg ladder.ScoringConfig, sportPaused bool, recentOpponentIDs map[string]bool) []*ladder.PlayerProfile {
	if sportPaused {
		return nil
	}

	var eligible []*ladder.PlayerProfile
	for _, p := range profiles {
		if p.ID == me.ID || p.Deactivated {
			continue
		}
		if recentOpponentIDs[p.ID] {
			continue
		}
		if !withinWindow(me.LadderRank, p.LadderRank, cfg.MaxChallengeRange, cfg.MaxChallengeBelow) {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

// withinWindow checks the rank-distance rule. "Range" reaches up toward
// better-ranked players (lower rank numbers), "below" reaches down. A nil
// bound means that side is unlimited; a nil rank on either profile disables
// the window entirely.
func withinWindow(myRank, theirRank, maxRange, maxBelow *int) bool {
	if myRank == nil || theirRank == nil {
		return true
	}
	if maxRange != nil && *theirRank < *myRank-*maxRange {
		return false
	}
	if maxBelow != nil && *theirRank > *myRank+*maxBelow {
		return false
	}
	return true
}

// CooldownOpponents scans a profile's non-cancelled matches and collects the
// opponents faced within the cooldown window. These block an immediate
// rematch regardless of rank proximity.
func CooldownOpponents(matches []*ladder.Match, myProfileID string, cooldownDays int, now time.Time) map[string]bool {
	cutoff := now.AddDate(0, 0, -cooldownDays)
	recent := make(map[string]bool)
	for _, m := range matches {
		if m.Status == ladder.StatusCancelled || !m.Involves(myProfileID) {
			continue
		}
		if m.CreatedAt.Before(cutoff) {
			continue
		}
		if opp := m.Opponent(myProfileID); opp != "" {
			recent[opp] = true
		}
	}
	return recent
}
