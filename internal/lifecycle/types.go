package lifecycle

import "github.com/mauv0809/refactored-ladder/internal/ladder"

// Outcome classifies what a transition call did.
type Outcome string

const (
	// OutcomeApplied means the transition was performed.
	OutcomeApplied Outcome = "applied"
	// OutcomeNotApplicable means the match had already left the state the
	// action targets. Clicking a stale link lands here, not on an error.
	OutcomeNotApplicable Outcome = "not_applicable"
)

// Result is what every lifecycle operation returns to its caller.
type Result struct {
	Outcome Outcome       `json:"outcome"`
	Match   *ladder.Match `json:"match,omitempty"`
}

// SystemIdentity is the acting identity for scheduler-driven transitions.
const SystemIdentity = "system"

// MatchEvent is the payload published for match lifecycle events.
type MatchEvent struct {
	MatchID   string  `msgpack:"match_id" json:"match_id"`
	SportID   string  `msgpack:"sport_id" json:"sport_id"`
	Player1ID string  `msgpack:"player1_id" json:"player1_id"`
	Player2ID string  `msgpack:"player2_id" json:"player2_id"`
	Status    string  `msgpack:"status" json:"status"`
	WinnerID  *string `msgpack:"winner_id,omitempty" json:"winner_id,omitempty"`
}

func matchPayload(m *ladder.Match) MatchEvent {
	return MatchEvent{
		MatchID:   m.ID,
		SportID:   m.SportID,
		Player1ID: m.Player1ID,
		Player2ID: m.Player2ID,
		Status:    string(m.Status),
		WinnerID:  m.WinnerID,
	}
}
