package notifier

import (
	"time"

	"github.com/mauv0809/refactored-ladder/internal/ladder"
)

// Notifier defines a high-level interface for sending notifications about ladder events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// Match lifecycle
	ChallengeCreated(match *ladder.Match, challenger, defender *ladder.PlayerProfile, dryRun bool) error
	ChallengeAccepted(match *ladder.Match, challenger, defender *ladder.PlayerProfile, dryRun bool) error
	ResultReported(match *ladder.Match, reporter, opponent *ladder.PlayerProfile, dryRun bool) error
	ResultVerified(match *ladder.Match, winner, loser *ladder.PlayerProfile, dryRun bool) error
	ResultDisputed(match *ladder.Match, disputer *ladder.PlayerProfile, dryRun bool) error

	// Scheduler reminders
	ChallengeNudge(match *ladder.Match, defender *ladder.PlayerProfile, dryRun bool) error
	PendingNudge(match *ladder.Match, playerOne, playerTwo *ladder.PlayerProfile, dryRun bool) error
	ForfeitWarning(match *ladder.Match, playerOne, playerTwo *ladder.PlayerProfile, deadline time.Time, dryRun bool) error

	// Inactivity enforcement
	InactivityWarning(profile *ladder.PlayerProfile, threshold time.Time, dryRun bool) error
	InactivityPenalty(profile *ladder.PlayerProfile, oldRating, newRating int, dryRun bool) error
	RemovalWarning(profile *ladder.PlayerProfile, deadline time.Time, dryRun bool) error
	PlayerRemoved(profile *ladder.PlayerProfile, dryRun bool) error

	// Standings posting and slash command responses
	SendStandings(sport *ladder.Sport, profiles []*ladder.PlayerProfile, dryRun bool) error
	FormatStandingsResponse(sport *ladder.Sport, profiles []*ladder.PlayerProfile) (any, error)
}
