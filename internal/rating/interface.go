package rating

import (
	"github.com/mauv0809/refactored-ladder/internal/ladder"
)

// Store defines the persistence methods the rating engine needs.
type Store interface {
	GetSport(id string) (*ladder.Sport, error)
	GetMatch(id string) (*ladder.Match, error)
	GetProfile(id string) (*ladder.PlayerProfile, error)
	GetProfiles(sportID string) ([]*ladder.PlayerProfile, error)
	SetRating(profileID string, rating, matchesPlayed int) error
	SetRanks(sportID string, ranks map[string]*int) error
	AppendRatingHistory(e *ladder.RatingHistoryEntry) error
	AppendRankHistory(e *ladder.RankHistoryEntry) error
	GetProcessedMatches(sportID string) ([]*ladder.Match, error)
	ResetRatings(sportID string, baseline int) error
	ClearHistory(sportID string) error
}
