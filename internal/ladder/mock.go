package ladder

import (
	"sync"
	"time"
)

// MockStore is a mock implementation of the LadderStore interface for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	// Spies for method calls
	CreateSportFunc         func(s *Sport) error
	GetSportFunc            func(id string) (*Sport, error)
	ListSportsFunc          func() ([]*Sport, error)
	SetSportPausedFunc      func(id string, paused bool) error
	UpsertProfileFunc       func(p *PlayerProfile) error
	GetProfileFunc          func(id string) (*PlayerProfile, error)
	GetProfilesFunc         func(sportID string) ([]*PlayerProfile, error)
	SetRatingFunc           func(profileID string, rating, matchesPlayed int) error
	SetRanksFunc            func(sportID string, ranks map[string]*int) error
	DeactivateProfileFunc   func(profileID string, at time.Time) error
	ReinstateProfileFunc    func(profileID string) error
	MarkPenaltyAppliedFunc  func(profileID string, at time.Time) error
	MarkPenaltyWarnedFunc   func(profileID string, at time.Time) error
	MarkRemovalWarnedFunc   func(profileID string, at time.Time) error
	CreateMatchFunc         func(m *Match) error
	GetMatchFunc            func(id string) (*Match, error)
	GetMatchesBySportFunc   func(sportID string) ([]*Match, error)
	GetMatchesByStatusFunc  func(sportID string, statuses ...MatchStatus) ([]*Match, error)
	GetProcessedMatchesFunc func(sportID string) ([]*Match, error)
	GetMatchesInvolvingFunc func(profileID string, since time.Time) ([]*Match, error)
	TransitionMatchFunc     func(id string, from MatchStatus, upd MatchUpdate) (*Match, error)
	ForceMatchFunc          func(id string, upd MatchUpdate) (*Match, error)
	MarkDefenderNudgedFunc  func(matchID string, at time.Time) error
	MarkPartiesNudgedFunc   func(matchID string, at time.Time) error
	MarkForfeitWarnedFunc   func(matchID string, at time.Time) error
	AppendRatingHistoryFunc func(e *RatingHistoryEntry) error
	AppendRankHistoryFunc   func(e *RankHistoryEntry) error
	GetRatingHistoryFunc    func(profileID string) ([]*RatingHistoryEntry, error)
	GetRankHistoryFunc      func(profileID string) ([]*RankHistoryEntry, error)
	ResetRatingsFunc        func(sportID string, baseline int) error
	ClearHistoryFunc        func(sportID string) error

	// Call records
	CreateMatchCalls     []*Match
	TransitionMatchCalls []struct {
		ID   string
		From MatchStatus
		Upd  MatchUpdate
	}
	ForceMatchCalls []struct {
		ID  string
		Upd MatchUpdate
	}
	SetRatingCalls []struct {
		ProfileID     string
		Rating        int
		MatchesPlayed int
	}
	SetRanksCalls []struct {
		SportID string
		Ranks   map[string]*int
	}
	AppendRatingHistoryCalls []*RatingHistoryEntry
	AppendRankHistoryCalls   []*RankHistoryEntry
	DeactivateProfileCalls   []string
}

// NewMock creates a new mock instance.
func NewMock() *MockStore {
	return &MockStore{}
}

// Reset clears all call records.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateMatchCalls = nil
	m.TransitionMatchCalls = nil
	m.ForceMatchCalls = nil
	m.SetRatingCalls = nil
	m.SetRanksCalls = nil
	m.AppendRatingHistoryCalls = nil
	m.AppendRankHistoryCalls = nil
	m.DeactivateProfileCalls = nil
}

func (m *MockStore) CreateSport(s *Sport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateSportFunc != nil {
		return m.CreateSportFunc(s)
	}
	return nil
}

func (m *MockStore) GetSport(id string) (*Sport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetSportFunc != nil {
		return m.GetSportFunc(id)
	}
	return nil, nil
}

func (m *MockStore) ListSports() ([]*Sport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListSportsFunc != nil {
		return m.ListSportsFunc()
	}
	return nil, nil
}

func (m *MockStore) SetSportPaused(id string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetSportPausedFunc != nil {
		return m.SetSportPausedFunc(id, paused)
	}
	return nil
}

func (m *MockStore) UpsertProfile(p *PlayerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertProfileFunc != nil {
		return m.UpsertProfileFunc(p)
	}
	return nil
}

func (m *MockStore) GetProfile(id string) (*PlayerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(id)
	}
	return nil, nil
}

func (m *MockStore) GetProfiles(sportID string) ([]*PlayerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetProfilesFunc != nil {
		return m.GetProfilesFunc(sportID)
	}
	return nil, nil
}

func (m *MockStore) SetRating(profileID string, rating, matchesPlayed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetRatingCalls = append(m.SetRatingCalls, struct {
		ProfileID     string
		Rating        int
		MatchesPlayed int
	}{profileID, rating, matchesPlayed})
	if m.SetRatingFunc != nil {
		return m.SetRatingFunc(profileID, rating, matchesPlayed)
	}
	return nil
}

func (m *MockStore) SetRanks(sportID string, ranks map[string]*int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetRanksCalls = append(m.SetRanksCalls, struct {
		SportID string
		Ranks   map[string]*int
	}{sportID, ranks})
	if m.SetRanksFunc != nil {
		return m.SetRanksFunc(sportID, ranks)
	}
	return nil
}

func (m *MockStore) DeactivateProfile(profileID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeactivateProfileCalls = append(m.DeactivateProfileCalls, profileID)
	if m.DeactivateProfileFunc != nil {
		return m.DeactivateProfileFunc(profileID, at)
	}
	return nil
}

func (m *MockStore) ReinstateProfile(profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReinstateProfileFunc != nil {
		return m.ReinstateProfileFunc(profileID)
	}
	return nil
}

func (m *MockStore) MarkPenaltyApplied(profileID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkPenaltyAppliedFunc != nil {
		return m.MarkPenaltyAppliedFunc(profileID, at)
	}
	return nil
}

func (m *MockStore) MarkPenaltyWarned(profileID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkPenaltyWarnedFunc != nil {
		return m.MarkPenaltyWarnedFunc(profileID, at)
	}
	return nil
}

func (m *MockStore) MarkRemovalWarned(profileID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkRemovalWarnedFunc != nil {
		return m.MarkRemovalWarnedFunc(profileID, at)
	}
	return nil
}

func (m *MockStore) CreateMatch(match *Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateMatchCalls = append(m.CreateMatchCalls, match)
	if m.CreateMatchFunc != nil {
		return m.CreateMatchFunc(match)
	}
	return nil
}

func (m *MockStore) GetMatch(id string) (*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetMatchFunc != nil {
		return m.GetMatchFunc(id)
	}
	return nil, nil
}

func (m *MockStore) GetMatchesBySport(sportID string) ([]*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetMatchesBySportFunc != nil {
		return m.GetMatchesBySportFunc(sportID)
	}
	return nil, nil
}

func (m *MockStore) GetMatchesByStatus(sportID string, statuses ...MatchStatus) ([]*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetMatchesByStatusFunc != nil {
		return m.GetMatchesByStatusFunc(sportID, statuses...)
	}
	return nil, nil
}

func (m *MockStore) GetProcessedMatches(sportID string) ([]*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetProcessedMatchesFunc != nil {
		return m.GetProcessedMatchesFunc(sportID)
	}
	return nil, nil
}

func (m *MockStore) GetMatchesInvolving(profileID string, since time.Time) ([]*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetMatchesInvolvingFunc != nil {
		return m.GetMatchesInvolvingFunc(profileID, since)
	}
	return nil, nil
}

func (m *MockStore) TransitionMatch(id string, from MatchStatus, upd MatchUpdate) (*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionMatchCalls = append(m.TransitionMatchCalls, struct {
		ID   string
		From MatchStatus
		Upd  MatchUpdate
	}{id, from, upd})
	if m.TransitionMatchFunc != nil {
		return m.TransitionMatchFunc(id, from, upd)
	}
	return nil, nil
}

func (m *MockStore) ForceMatch(id string, upd MatchUpdate) (*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ForceMatchCalls = append(m.ForceMatchCalls, struct {
		ID  string
		Upd MatchUpdate
	}{id, upd})
	if m.ForceMatchFunc != nil {
		return m.ForceMatchFunc(id, upd)
	}
	return nil, nil
}

func (m *MockStore) MarkDefenderNudged(matchID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkDefenderNudgedFunc != nil {
		return m.MarkDefenderNudgedFunc(matchID, at)
	}
	return nil
}

func (m *MockStore) MarkPartiesNudged(matchID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkPartiesNudgedFunc != nil {
		return m.MarkPartiesNudgedFunc(matchID, at)
	}
	return nil
}

func (m *MockStore) MarkForfeitWarned(matchID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkForfeitWarnedFunc != nil {
		return m.MarkForfeitWarnedFunc(matchID, at)
	}
	return nil
}

func (m *MockStore) AppendRatingHistory(e *RatingHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendRatingHistoryCalls = append(m.AppendRatingHistoryCalls, e)
	if m.AppendRatingHistoryFunc != nil {
		return m.AppendRatingHistoryFunc(e)
	}
	return nil
}

func (m *MockStore) AppendRankHistory(e *RankHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendRankHistoryCalls = append(m.AppendRankHistoryCalls, e)
	if m.AppendRankHistoryFunc != nil {
		return m.AppendRankHistoryFunc(e)
	}
	return nil
}

func (m *MockStore) GetRatingHistory(profileID string) ([]*RatingHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetRatingHistoryFunc != nil {
		return m.GetRatingHistoryFunc(profileID)
	}
	return nil, nil
}

func (m *MockStore) GetRankHistory(profileID string) ([]*RankHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetRankHistoryFunc != nil {
		return m.GetRankHistoryFunc(profileID)
	}
	return nil, nil
}

func (m *MockStore) ResetRatings(sportID string, baseline int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResetRatingsFunc != nil {
		return m.ResetRatingsFunc(sportID, baseline)
	}
	return nil
}

func (m *MockStore) ClearHistory(sportID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearHistoryFunc != nil {
		return m.ClearHistoryFunc(sportID)
	}
	return nil
}
