package notifier

import (
	"sync"
	"time"

	"github.com/mauv0809/refactored-ladder/internal/ladder"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Call records
	ChallengeCreatedCalls  []struct{ Match *ladder.Match }
	ChallengeAcceptedCalls []struct{ Match *ladder.Match }
	ResultReportedCalls    []struct{ Match *ladder.Match }
	ResultVerifiedCalls    []struct {
		Match  *ladder.Match
		Winner *ladder.PlayerProfile
		Loser  *ladder.PlayerProfile
	}
	ResultDisputedCalls []struct{ Match *ladder.Match }
	ChallengeNudgeCalls []struct{ Match *ladder.Match }
	PendingNudgeCalls   []struct{ Match *ladder.Match }
	ForfeitWarningCalls []struct {
		Match    *ladder.Match
		Deadline time.Time
	}
	InactivityWarningCalls []struct{ Profile *ladder.PlayerProfile }
	InactivityPenaltyCalls []struct {
		Profile   *ladder.PlayerProfile
		OldRating int
		NewRating int
	}
	RemovalWarningCalls []struct {
		Profile  *ladder.PlayerProfile
		Deadline time.Time
	}
	PlayerRemovedCalls []struct{ Profile *ladder.PlayerProfile }
	SendStandingsCalls []struct{ Sport *ladder.Sport }

	// Optional error injection, applied to every method when set.
	Err error

	// Spy for the format function
	FormatStandingsResponseFunc func(sport *ladder.Sport, profiles []*ladder.PlayerProfile) (any, error)
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChallengeCreatedCalls = nil
	m.ChallengeAcceptedCalls = nil
	m.ResultReportedCalls = nil
	m.ResultVerifiedCalls = nil
	m.ResultDisputedCalls = nil
	m.ChallengeNudgeCalls = nil
	m.PendingNudgeCalls = nil
	m.ForfeitWarningCalls = nil
	m.InactivityWarningCalls = nil
	m.InactivityPenaltyCalls = nil
	m.RemovalWarningCalls = nil
	m.PlayerRemovedCalls = nil
	m.SendStandingsCalls = nil
	m.Err = nil
}

func (m *Mock) ChallengeCreated(match *ladder.Match, challenger, defender *ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChallengeCreatedCalls = append(m.ChallengeCreatedCalls, struct{ Match *ladder.Match }{match})
	return m.Err
}

func (m *Mock) ChallengeAccepted(match *ladder.Match, challenger, defender *ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChallengeAcceptedCalls = append(m.ChallengeAcceptedCalls, struct{ Match *ladder.Match }{match})
	return m.Err
}

func (m *Mock) ResultReported(match *ladder.Match, reporter, opponent *ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResultReportedCalls = append(m.ResultReportedCalls, struct{ Match *ladder.Match }{match})
	return m.Err
}

func (m *Mock) ResultVerified(match *ladder.Match, winner, loser *ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResultVerifiedCalls = append(m.ResultVerifiedCalls, struct {
		Match  *ladder.Match
		Winner *ladder.PlayerProfile
		Loser  *ladder.PlayerProfile
	}{match, winner, loser})
	return m.Err
}

func (m *Mock) ResultDisputed(match *ladder.Match, disputer *ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResultDisputedCalls = append(m.ResultDisputedCalls, struct{ Match *ladder.Match }{match})
	return m.Err
}

func (m *Mock) ChallengeNudge(match *ladder.Match, defender *ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChallengeNudgeCalls = append(m.ChallengeNudgeCalls, struct{ Match *ladder.Match }{match})
	return m.Err
}

func (m *Mock) PendingNudge(match *ladder.Match, playerOne, playerTwo *ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingNudgeCalls = append(m.PendingNudgeCalls, struct{ Match *ladder.Match }{match})
	return m.Err
}

func (m *Mock) ForfeitWarning(match *ladder.Match, playerOne, playerTwo *ladder.PlayerProfile, deadline time.Time, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ForfeitWarningCalls = append(m.ForfeitWarningCalls, struct {
		Match    *ladder.Match
		Deadline time.Time
	}{match, deadline})
	return m.Err
}

func (m *Mock) InactivityWarning(profile *ladder.PlayerProfile, threshold time.Time, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InactivityWarningCalls = append(m.InactivityWarningCalls, struct{ Profile *ladder.PlayerProfile }{profile})
	return m.Err
}

func (m *Mock) InactivityPenalty(profile *ladder.PlayerProfile, oldRating, newRating int, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InactivityPenaltyCalls = append(m.InactivityPenaltyCalls, struct {
		Profile   *ladder.PlayerProfile
		OldRating int
		NewRating int
	}{profile, oldRating, newRating})
	return m.Err
}

func (m *Mock) RemovalWarning(profile *ladder.PlayerProfile, deadline time.Time, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemovalWarningCalls = append(m.RemovalWarningCalls, struct {
		Profile  *ladder.PlayerProfile
		Deadline time.Time
	}{profile, deadline})
	return m.Err
}

func (m *Mock) PlayerRemoved(profile *ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlayerRemovedCalls = append(m.PlayerRemovedCalls, struct{ Profile *ladder.PlayerProfile }{profile})
	return m.Err
}

func (m *Mock) SendStandings(sport *ladder.Sport, profiles []*ladder.PlayerProfile, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendStandingsCalls = append(m.SendStandingsCalls, struct{ Sport *ladder.Sport }{sport})
	return m.Err
}

func (m *Mock) FormatStandingsResponse(sport *ladder.Sport, profiles []*ladder.PlayerProfile) (any, error) {
	if m.FormatStandingsResponseFunc != nil {
		return m.FormatStandingsResponseFunc(sport, profiles)
	}
	return map[string]string{"text": "standings"}, nil
}
