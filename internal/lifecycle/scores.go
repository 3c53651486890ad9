package lifecycle

import (
	"fmt"

	"github.com/mauv0809/refactored-ladder/internal/ladder"
)

// deriveSetsWinner validates a set-scored result and returns the winner's
// profile ID. The caller never gets to name the winner for sets scoring; the
// scores decide.
func deriveSetsWinner(m *ladder.Match, sets []ladder.SetScore, cfg ladder.ScoringConfig) (string, error) {
	if len(sets) == 0 {
		return "", &ladder.ValidationError{Field: "scores", Reason: "no sets reported"}
	}
	if cfg.TotalSets > 0 && len(sets) > cfg.TotalSets {
		return "", &ladder.ValidationError{Field: "scores", Reason: fmt.Sprintf("at most %d sets allowed", cfg.TotalSets)}
	}

	p1Sets, p2Sets := 0, 0
	allEmpty := true
	for i, s := range sets {
		if s.P1 < 0 || s.P2 < 0 {
			return "", &ladder.ValidationError{Field: "scores", Reason: "points cannot be negative"}
		}
		if s.P1 != 0 || s.P2 != 0 {
			allEmpty = false
		}
		if s.P1 == s.P2 {
			return "", &ladder.ValidationError{Field: "scores", Reason: fmt.Sprintf("set %d cannot be drawn: %d-%d", i+1, s.P1, s.P2)}
		}
		if err := validateSetPoints(s, cfg); err != nil {
			return "", err
		}
		if s.P1 > s.P2 {
			p1Sets++
		} else {
			p2Sets++
		}
	}
	if allEmpty {
		return "", &ladder.ValidationError{Field: "scores", Reason: "all sets are empty"}
	}
	if p1Sets == p2Sets {
		return "", &ladder.ValidationError{Field: "scores", Reason: fmt.Sprintf("sets are tied %d-%d, result is incomplete", p1Sets, p2Sets)}
	}
	if p1Sets > p2Sets {
		return m.Player1ID, nil
	}
	return m.Player2ID, nil
}

// validateSetPoints enforces the per-set point rules when the sport
// configures them: the winning side reaches points_per_set and wins by
// win_by, unless the cap ends the set early.
func validateSetPoints(s ladder.SetScore, cfg ladder.ScoringConfig) error {
	if cfg.PointsPerSet == 0 {
		return nil
	}

	hi, lo := s.P1, s.P2
	if lo > hi {
		hi, lo = lo, hi
	}
	if cfg.Cap > 0 && hi == cfg.Cap {
		return nil
	}
	if hi < cfg.PointsPerSet {
		return &ladder.ValidationError{Field: "scores", Reason: fmt.Sprintf("set must go to at least %d: %d-%d", cfg.PointsPerSet, s.P1, s.P2)}
	}
	if cfg.WinBy > 0 && hi-lo < cfg.WinBy {
		return &ladder.ValidationError{Field: "scores", Reason: fmt.Sprintf("set must be won by %d: %d-%d", cfg.WinBy, s.P1, s.P2)}
	}
	if cfg.Cap > 0 && hi > cfg.Cap {
		return &ladder.ValidationError{Field: "scores", Reason: fmt.Sprintf("set points are capped at %d: %d-%d", cfg.Cap, s.P1, s.P2)}
	}
	return nil
}
