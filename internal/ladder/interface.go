package ladder

import "time"

// LadderStore defines the interface for the durable ladder records: sports,
// player profiles, matches and the two append-only history ledgers.
type LadderStore interface {
	CreateSport(s *Sport) error
	GetSport(id string) (*Sport, error)
	ListSports() ([]*Sport, error)
	SetSportPaused(id string, paused bool) error

	UpsertProfile(p *PlayerProfile) error
	GetProfile(id string) (*PlayerProfile, error)
	GetProfiles(sportID string) ([]*PlayerProfile, error)
	SetRating(profileID string, rating, matchesPlayed int) error
	SetRanks(sportID string, ranks map[string]*int) error
	DeactivateProfile(profileID string, at time.Time) error
	ReinstateProfile(profileID string) error
	MarkPenaltyApplied(profileID string, at time.Time) error
	MarkPenaltyWarned(profileID string, at time.Time) error
	MarkRemovalWarned(profileID string, at time.Time) error

	CreateMatch(m *Match) error
	GetMatch(id string) (*Match, error)
	GetMatchesBySport(sportID string) ([]*Match, error)
	GetMatchesByStatus(sportID string, statuses ...MatchStatus) ([]*Match, error)
	GetProcessedMatches(sportID string) ([]*Match, error)
	GetMatchesInvolving(profileID string, since time.Time) ([]*Match, error)
	TransitionMatch(id string, from MatchStatus, upd MatchUpdate) (*Match, error)
	ForceMatch(id string, upd MatchUpdate) (*Match, error)
	MarkDefenderNudged(matchID string, at time.Time) error
	MarkPartiesNudged(matchID string, at time.Time) error
	MarkForfeitWarned(matchID string, at time.Time) error

	AppendRatingHistory(e *RatingHistoryEntry) error
	AppendRankHistory(e *RankHistoryEntry) error
	GetRatingHistory(profileID string) ([]*RatingHistoryEntry, error)
	GetRankHistory(profileID string) ([]*RankHistoryEntry, error)
	ResetRatings(sportID string, baseline int) error
	ClearHistory(sportID string) error
}
