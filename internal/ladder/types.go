package ladder

import (
	"database/sql"
	"sync"
	"time"
)

// store handles all database operations for the ladder.
type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	StatusChallenged MatchStatus = "CHALLENGED"
	StatusPending    MatchStatus = "PENDING"
	StatusProcessing MatchStatus = "PROCESSING"
	StatusProcessed  MatchStatus = "PROCESSED"
	StatusCancelled  MatchStatus = "CANCELLED"
	StatusDisputed   MatchStatus = "DISPUTED"
)

// Terminal reports whether no further user transitions are allowed from s.
// DISPUTED is terminal for users but remains open to admin resolution.
func (s MatchStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusCancelled || s == StatusDisputed
}

// ScoringType selects how a match result is reported and validated.
type ScoringType string

const (
	ScoringSimple ScoringType = "simple"
	ScoringSets   ScoringType = "sets"
)

// Defaults applied by ScoringConfig.Normalize.
const (
	DefaultRematchCooldownDays  = 7
	DefaultChallengeWindowDays  = 7
	DefaultAutoVerifyWindowDays = 3
	BaselineRating              = 1000
)

// ScoringConfig is the per-sport rule set. Absent numeric fields mean
// "unlimited" for the challenge window bounds and "use default" elsewhere.
type ScoringConfig struct {
	Type                 ScoringType `json:"type"`
	TotalSets            int         `json:"total_sets,omitempty"`
	WinBy                int         `json:"win_by,omitempty"`
	Cap                  int         `json:"cap,omitempty"`
	PointsPerSet         int         `json:"points_per_set,omitempty"`
	MaxChallengeRange    *int        `json:"max_challenge_range,omitempty"`
	MaxChallengeBelow    *int        `json:"max_challenge_below,omitempty"`
	RematchCooldownDays  int         `json:"rematch_cooldown_days,omitempty"`
	ChallengeWindowDays  int         `json:"challenge_window_days,omitempty"`
	AutoVerifyWindowDays int         `json:"auto_verify_window_days,omitempty"`
	PenaltyDays          int         `json:"penalty_days,omitempty"`
	RemovalDays          int         `json:"removal_days,omitempty"`
}

// Normalize fills in defaults for unset fields. It never mutates the receiver.
func (c ScoringConfig) Normalize() ScoringConfig {
	if c.Type == "" {
		c.Type = ScoringSimple
	}
	if c.RematchCooldownDays == 0 {
		c.RematchCooldownDays = DefaultRematchCooldownDays
	}
	if c.ChallengeWindowDays == 0 {
		c.ChallengeWindowDays = DefaultChallengeWindowDays
	}
	if c.AutoVerifyWindowDays == 0 {
		c.AutoVerifyWindowDays = DefaultAutoVerifyWindowDays
	}
	return c
}

// Sport is one ladder: a named pool of ranked players and its rule set.
type Sport struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ScoringConfig ScoringConfig `json:"scoring_config"`
	IsPaused      bool          `json:"is_paused"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PlayerProfile is one user's standing in one sport. LadderRank is nil while
// the profile is deactivated or has never been ranked.
type PlayerProfile struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	SportID         string     `json:"sport_id"`
	Name            string     `json:"name"`
	Rating          int        `json:"rating"`
	MatchesPlayed   int        `json:"matches_played"`
	LadderRank      *int       `json:"ladder_rank"`
	Deactivated     bool       `json:"deactivated"`
	DeactivatedAt   *time.Time `json:"deactivated_at,omitempty"`
	LastActiveRank  *int       `json:"last_active_rank,omitempty"`
	LastPenaltyAt   *time.Time `json:"-"`
	PenaltyWarnedAt *time.Time `json:"-"`
	RemovalWarnedAt *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}

// SetScore is one set's points, challenger first.
type SetScore struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

// Score reasons for matches that ended without played sets.
const (
	ReasonForfeit   = "forfeit"
	ReasonWithdrawn = "withdrawn"
)

// ScoreSheet is a tagged variant: either an ordered sequence of set scores,
// or a reason record for matches that never produced one.
type ScoreSheet struct {
	Sets        []SetScore `json:"sets,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	ForfeitedBy string     `json:"forfeited_by,omitempty"`
	WithdrawnBy string     `json:"withdrawn_by,omitempty"`
}

// IsReason reports whether the sheet records a reason instead of played sets.
func (s *ScoreSheet) IsReason() bool {
	return s != nil && s.Reason != ""
}

// Match is one challenge between two profiles of the same sport.
// Player1 is always the challenger.
type Match struct {
	ID               string      `json:"id"`
	SportID          string      `json:"sport_id"`
	Player1ID        string      `json:"player1_id"`
	Player2ID        string      `json:"player2_id"`
	Status           MatchStatus `json:"status"`
	WinnerID         *string     `json:"winner_id,omitempty"`
	ReportedBy       *string     `json:"reported_by,omitempty"`
	ActionToken      string      `json:"-"`
	Scores           *ScoreSheet `json:"scores,omitempty"`
	Message          string      `json:"message,omitempty"`
	AcceptedAt       *time.Time  `json:"accepted_at,omitempty"`
	ReportedAt       *time.Time  `json:"reported_at,omitempty"`
	DefenderNudgedAt *time.Time  `json:"-"`
	PartiesNudgedAt  *time.Time  `json:"-"`
	ForfeitWarnedAt  *time.Time  `json:"-"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Involves reports whether profileID is one of the two participants.
func (m *Match) Involves(profileID string) bool {
	return m.Player1ID == profileID || m.Player2ID == profileID
}

// Opponent returns the other participant, or "" if profileID is not in the match.
func (m *Match) Opponent(profileID string) string {
	switch profileID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}

// MatchUpdate carries the fields a transition writes alongside the new status.
// Nil pointers leave the stored value untouched.
type MatchUpdate struct {
	Status     MatchStatus
	WinnerID   *string
	ReportedBy *string
	Scores     *ScoreSheet
	AcceptedAt *time.Time
	ReportedAt *time.Time
}

// RatingHistoryEntry is one immutable row of the rating ledger.
type RatingHistoryEntry struct {
	ID              int64     `json:"id"`
	PlayerProfileID string    `json:"player_profile_id"`
	MatchID         *string   `json:"match_id,omitempty"`
	OldRating       int       `json:"old_rating"`
	NewRating       int       `json:"new_rating"`
	Delta           int       `json:"delta"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}

// RankHistoryEntry is one immutable row of the rank ledger.
type RankHistoryEntry struct {
	ID              int64     `json:"id"`
	PlayerProfileID string    `json:"player_profile_id"`
	MatchID         *string   `json:"match_id,omitempty"`
	OldRank         *int      `json:"old_rank"`
	NewRank         *int      `json:"new_rank"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}
