package lifecycle

import (
	"time"

	"github.com/mauv0809/refactored-ladder/internal/ladder"
)

// Store defines the persistence operations the state machine needs.
type Store interface {
	GetSport(id string) (*ladder.Sport, error)
	GetProfile(id string) (*ladder.PlayerProfile, error)
	GetProfiles(sportID string) ([]*ladder.PlayerProfile, error)
	UpsertProfile(p *ladder.PlayerProfile) error
	DeactivateProfile(profileID string, at time.Time) error
	ReinstateProfile(profileID string) error
	GetMatch(id string) (*ladder.Match, error)
	GetMatchesInvolving(profileID string, since time.Time) ([]*ladder.Match, error)
	CreateMatch(m *ladder.Match) error
	TransitionMatch(id string, from ladder.MatchStatus, upd ladder.MatchUpdate) (*ladder.Match, error)
	ForceMatch(id string, upd ladder.MatchUpdate) (*ladder.Match, error)
	AppendRankHistory(e *ladder.RankHistoryEntry) error
}

// RatingEngine defines the rating operations triggered by transitions.
type RatingEngine interface {
	ProcessMatch(matchID string) error
	Rerank(sportID string, matchID *string, reason string) error
}
