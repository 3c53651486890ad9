package scheduler

import (
	"time"

	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/lifecycle"
)

// ActionKind names one kind of scheduler-driven effect.
type ActionKind string

const (
	ActionChallengeNudge    ActionKind = "challenge_nudge"
	ActionPendingNudge      ActionKind = "pending_nudge"
	ActionForfeitWarning    ActionKind = "forfeit_warning"
	ActionAutoVerify        ActionKind = "auto_verify"
	ActionInactivityWarning ActionKind = "inactivity_warning"
	ActionInactivityPenalty ActionKind = "inactivity_penalty"
	ActionRemovalWarning    ActionKind = "removal_warning"
	ActionRemoval           ActionKind = "removal"
)

// Action is one effect the sweep decided to perform. The decision step only
// produces these; the effect step executes them.
type Action struct {
	Kind      ActionKind
	SportID   string
	MatchID   string
	ProfileID string
	Deadline  time.Time
}

// Sweep timing knobs.
const (
	// ChallengeNudgeAfterDays is the grace window before nudging a defender
	// sitting on an open challenge.
	ChallengeNudgeAfterDays = 3
	// PendingNudgeAfterDays is the grace window before nudging both parties
	// of an accepted but unplayed match.
	PendingNudgeAfterDays = 3
	// WarningLeadTime is how far ahead of a deadline warnings go out.
	WarningLeadTime = 24 * time.Hour
	// PenaltyRatingDrop is the rating cost of crossing the inactivity
	// threshold.
	PenaltyRatingDrop = 25
)

// History reasons written by the sweep.
const (
	ReasonInactivityPenalty = "Inactivity Penalty"
	ReasonInactivityRemoval = "Inactivity Removal"
)

// Store defines the persistence operations the sweeper needs.
type Store interface {
	ListSports() ([]*ladder.Sport, error)
	GetProfile(id string) (*ladder.PlayerProfile, error)
	GetProfiles(sportID string) ([]*ladder.PlayerProfile, error)
	GetMatchesBySport(sportID string) ([]*ladder.Match, error)
	GetMatch(id string) (*ladder.Match, error)
	MarkDefenderNudged(matchID string, at time.Time) error
	MarkPartiesNudged(matchID string, at time.Time) error
	MarkForfeitWarned(matchID string, at time.Time) error
	MarkPenaltyApplied(profileID string, at time.Time) error
	MarkPenaltyWarned(profileID string, at time.Time) error
	MarkRemovalWarned(profileID string, at time.Time) error
	DeactivateProfile(profileID string, at time.Time) error
	AppendRankHistory(e *ladder.RankHistoryEntry) error
}

// Lifecycle defines the transitions the sweeper drives through the state
// machine.
type Lifecycle interface {
	AutoVerify(matchID string, dryRun bool) (*lifecycle.Result, error)
}

// RatingEngine defines the rating operations the sweeper needs.
type RatingEngine interface {
	ApplyPenalty(profileID string, amount int, reason string) error
	Rerank(sportID string, matchID *string, reason string) error
}
