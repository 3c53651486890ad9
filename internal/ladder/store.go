package ladder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New creates a new LadderStore.
func New(db *sql.DB) LadderStore {
	return &store{
		db: db,
	}
}

// nullUnix converts an optional time to its stored unix-seconds form.
func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Sports ---

func (s *store) CreateSport(sport *Sport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfgJSON, err := json.Marshal(sport.ScoringConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal scoring config: %w", err)
	}
	if sport.CreatedAt.IsZero() {
		sport.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(`
		INSERT INTO sports (id, name, scoring_config, is_paused, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			scoring_config = excluded.scoring_config,
			is_paused = excluded.is_paused;
	`, sport.ID, sport.Name, string(cfgJSON), sport.IsPaused, sport.CreatedAt.Unix())
	return err
}

func (s *store) GetSport(id string) (*Sport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSportLocked(id)
}

func (s *store) getSportLocked(id string) (*Sport, error) {
	row := s.db.QueryRow("SELECT id, name, scoring_config, is_paused, created_at FROM sports WHERE id = ?", id)
	return scanSport(row)
}

func scanSport(scanner interface{ Scan(...any) error }) (*Sport, error) {
	var sport Sport
	var cfgJSON string
	var createdAt int64
	if err := scanner.Scan(&sport.ID, &sport.Name, &cfgJSON, &sport.IsPaused, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ValidationError{Reason: "unknown sport"}
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &sport.ScoringConfig); err != nil {
		log.Error("Failed to unmarshal scoring config", "error", err, "sportID", sport.ID)
	}
	sport.ScoringConfig = sport.ScoringConfig.Normalize()
	sport.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &sport, nil
}

func (s *store) ListSports() ([]*Sport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, name, scoring_config, is_paused, created_at FROM sports ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sports []*Sport
	for rows.Next() {
		sport, err := scanSport(rows)
		if err != nil {
			log.Error("Failed to scan sport row", "error", err)
			continue
		}
		sports = append(sports, sport)
	}
	return sports, rows.Err()
}

func (s *store) SetSportPaused(id string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE sports SET is_paused = ? WHERE id = ?", paused, id)
	return err
}

// --- Player profiles ---

const profileColumns = `id, user_id, sport_id, name, rating, matches_played, ladder_rank,
	deactivated, deactivated_at, last_active_rank, last_penalty_at, penalty_warned_at, removal_warned_at, created_at`

func (s *store) UpsertProfile(p *PlayerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Rating == 0 {
		p.Rating = BaselineRating
	}
	// Rating, rank and deactivation state are owned by the engines and are
	// deliberately not overwritten on conflict.
	_, err := s.db.Exec(`
		INSERT INTO player_profiles (id, user_id, sport_id, name, rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name;
	`, p.ID, p.UserID, p.SportID, p.Name, p.Rating, p.CreatedAt.Unix())
	if isUniqueViolation(err) {
		return &ConflictError{Reason: "profile already exists for this user and sport"}
	}
	return err
}

func scanProfile(scanner interface{ Scan(...any) error }) (*PlayerProfile, error) {
	var p PlayerProfile
	var rank, lastActive, lastPenalty, penaltyWarned, removalWarned, deactivatedAt sql.NullInt64
	var createdAt int64
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.SportID, &p.Name, &p.Rating, &p.MatchesPlayed, &rank,
		&p.Deactivated, &deactivatedAt, &lastActive, &lastPenalty, &penaltyWarned, &removalWarned, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ValidationError{Reason: "unknown profile"}
		}
		return nil, err
	}
	p.LadderRank = intPtr(rank)
	p.LastActiveRank = intPtr(lastActive)
	p.DeactivatedAt = unixPtr(deactivatedAt)
	p.LastPenaltyAt = unixPtr(lastPenalty)
	p.PenaltyWarnedAt = unixPtr(penaltyWarned)
	p.RemovalWarnedAt = unixPtr(removalWarned)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

func (s *store) GetProfile(id string) (*PlayerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT "+profileColumns+" FROM player_profiles WHERE id = ?", id)
	return scanProfile(row)
}

func (s *store) GetProfiles(sportID string) ([]*PlayerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT "+profileColumns+" FROM player_profiles WHERE sport_id = ? ORDER BY created_at, id", sportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*PlayerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			log.Error("Failed to scan profile row", "error", err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *store) SetRating(profileID string, rating, matchesPlayed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE player_profiles SET rating = ?, matches_played = ? WHERE id = ?", rating, matchesPlayed, profileID)
	return err
}

// SetRanks bulk-writes the derived ladder_rank column for a sport. A nil rank
// clears the column (deactivated or unranked profiles).
func (s *store) SetRanks(sportID string, ranks map[string]*int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("UPDATE player_profiles SET ladder_rank = ? WHERE id = ? AND sport_id = ?")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for profileID, rank := range ranks {
		if _, err := stmt.Exec(nullInt(rank), profileID, sportID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// DeactivateProfile removes a profile from the ladder, preserving its last
// rank for a later reinstatement.
func (s *store) DeactivateProfile(profileID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE player_profiles
		SET deactivated = 1,
			deactivated_at = ?,
			last_active_rank = ladder_rank,
			ladder_rank = NULL
		WHERE id = ? AND deactivated = 0
	`, at.Unix(), profileID)
	return err
}

func (s *store) ReinstateProfile(profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE player_profiles
		SET deactivated = 0,
			deactivated_at = NULL
		WHERE id = ? AND deactivated = 1
	`, profileID)
	return err
}

func (s *store) MarkPenaltyApplied(profileID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("UPDATE player_profiles SET last_penalty_at = ? WHERE id = ?", at.Unix(), profileID)
	return err
}

func (s *store) MarkPenaltyWarned(profileID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("UPDATE player_profiles SET penalty_warned_at = ? WHERE id = ?", at.Unix(), profileID)
	return err
}

func (s *store) MarkRemovalWarned(profileID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("UPDATE player_profiles SET removal_warned_at = ? WHERE id = ?", at.Unix(), profileID)
	return err
}

// --- Matches ---

const matchColumns = `id, sport_id, player1_id, player2_id, status, winner_id, reported_by,
	action_token, scores_json, message, accepted_at, reported_at,
	defender_nudged_at, parties_nudged_at, forfeit_warned_at, created_at, updated_at`

// CreateMatch inserts a new CHALLENGED match. The single-active-match-per-pair
// rule is enforced by a partial unique index, so a racing duplicate surfaces
// here as a ConflictError.
func (s *store) CreateMatch(m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = StatusChallenged
	}

	var scoresJSON any
	if m.Scores != nil {
		b, err := json.Marshal(m.Scores)
		if err != nil {
			return fmt.Errorf("failed to marshal scores: %w", err)
		}
		scoresJSON = string(b)
	}

	_, err := s.db.Exec(`
		INSERT INTO matches (id, sport_id, player1_id, player2_id, status, winner_id, reported_by,
			action_token, scores_json, message, accepted_at, reported_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.SportID, m.Player1ID, m.Player2ID, m.Status, nullStr(m.WinnerID), nullStr(m.ReportedBy),
		m.ActionToken, scoresJSON, m.Message, nullUnix(m.AcceptedAt), nullUnix(m.ReportedAt),
		m.CreatedAt.Unix(), m.UpdatedAt.Unix())
	if isUniqueViolation(err) {
		return &ConflictError{Reason: "an active match already exists for this pair"}
	}
	return err
}

func scanMatch(scanner interface{ Scan(...any) error }) (*Match, error) {
	var m Match
	var winnerID, reportedBy, scoresJSON sql.NullString
	var acceptedAt, reportedAt, defenderNudged, partiesNudged, forfeitWarned sql.NullInt64
	var createdAt, updatedAt int64

	err := scanner.Scan(
		&m.ID, &m.SportID, &m.Player1ID, &m.Player2ID, &m.Status, &winnerID, &reportedBy,
		&m.ActionToken, &scoresJSON, &m.Message, &acceptedAt, &reportedAt,
		&defenderNudged, &partiesNudged, &forfeitWarned, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ValidationError{Reason: "unknown match"}
		}
		return nil, err
	}
	m.WinnerID = strPtr(winnerID)
	m.ReportedBy = strPtr(reportedBy)
	if scoresJSON.Valid && scoresJSON.String != "" {
		var sheet ScoreSheet
		if err := json.Unmarshal([]byte(scoresJSON.String), &sheet); err != nil {
			log.Error("Failed to unmarshal scores_json", "error", err, "matchID", m.ID)
		} else {
			m.Scores = &sheet
		}
	}
	m.AcceptedAt = unixPtr(acceptedAt)
	m.ReportedAt = unixPtr(reportedAt)
	m.DefenderNudgedAt = unixPtr(defenderNudged)
	m.PartiesNudgedAt = unixPtr(partiesNudged)
	m.ForfeitWarnedAt = unixPtr(forfeitWarned)
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &m, nil
}

func (s *store) GetMatch(id string) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMatchLocked(id)
}

func (s *store) getMatchLocked(id string) (*Match, error) {
	row := s.db.QueryRow("SELECT "+matchColumns+" FROM matches WHERE id = ?", id)
	return scanMatch(row)
}

func (s *store) queryMatches(query string, args ...any) ([]*Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			log.Error("Failed to scan match row", "error", err)
			continue
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *store) GetMatchesBySport(sportID string) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMatches("SELECT "+matchColumns+" FROM matches WHERE sport_id = ? ORDER BY created_at DESC", sportID)
}

func (s *store) GetMatchesByStatus(sportID string, statuses ...MatchStatus) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{sportID}
	for _, st := range statuses {
		args = append(args, st)
	}
	return s.queryMatches(
		"SELECT "+matchColumns+" FROM matches WHERE sport_id = ? AND status IN ("+placeholders+") ORDER BY created_at",
		args...,
	)
}

// GetProcessedMatches returns the PROCESSED matches of a sport in
// chronological order. This ordering is what RecomputeAll replays.
func (s *store) GetProcessedMatches(sportID string) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMatches(
		"SELECT "+matchColumns+" FROM matches WHERE sport_id = ? AND status = ? ORDER BY updated_at, created_at, id",
		sportID, StatusProcessed,
	)
}

// GetMatchesInvolving returns the non-cancelled matches a profile took part
// in since the given time. Used for the rematch cooldown scan.
func (s *store) GetMatchesInvolving(profileID string, since time.Time) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMatches(
		"SELECT "+matchColumns+" FROM matches WHERE (player1_id = ? OR player2_id = ?) AND status != ? AND created_at >= ? ORDER BY created_at",
		profileID, profileID, StatusCancelled, since.Unix(),
	)
}

// TransitionMatch moves a match from the expected source state to the state
// in upd. The status check happens inside the UPDATE itself, so of two racing
// transitions exactly one succeeds; the loser gets a PreconditionError.
func (s *store) TransitionMatch(id string, from MatchStatus, upd MatchUpdate) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execMatchUpdate(id, &from, upd)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		current, err := s.getMatchLocked(id)
		if err != nil {
			return nil, err
		}
		return nil, &PreconditionError{Status: current.Status}
	}
	return s.getMatchLocked(id)
}

// ForceMatch writes a status/winner without a source-state check. Admin
// override path only.
func (s *store) ForceMatch(id string, upd MatchUpdate) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execMatchUpdate(id, nil, upd)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &ValidationError{Reason: "unknown match"}
	}
	return s.getMatchLocked(id)
}

func (s *store) execMatchUpdate(id string, from *MatchStatus, upd MatchUpdate) (sql.Result, error) {
	set := []string{"status = ?", "updated_at = ?"}
	args := []any{upd.Status, time.Now().UTC().Unix()}

	if upd.WinnerID != nil {
		set = append(set, "winner_id = ?")
		args = append(args, *upd.WinnerID)
	}
	if upd.ReportedBy != nil {
		set = append(set, "reported_by = ?")
		args = append(args, *upd.ReportedBy)
	}
	if upd.Scores != nil {
		b, err := json.Marshal(upd.Scores)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal scores: %w", err)
		}
		set = append(set, "scores_json = ?")
		args = append(args, string(b))
	}
	if upd.AcceptedAt != nil {
		set = append(set, "accepted_at = ?")
		args = append(args, upd.AcceptedAt.Unix())
	}
	if upd.ReportedAt != nil {
		set = append(set, "reported_at = ?")
		args = append(args, upd.ReportedAt.Unix())
	}

	query := "UPDATE matches SET " + strings.Join(set, ", ") + " WHERE id = ?"
	args = append(args, id)
	if from != nil {
		query += " AND status = ?"
		args = append(args, *from)
	}
	return s.db.Exec(query, args...)
}

func (s *store) MarkDefenderNudged(matchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("UPDATE matches SET defender_nudged_at = ? WHERE id = ?", at.Unix(), matchID)
	return err
}

func (s *store) MarkPartiesNudged(matchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("UPDATE matches SET parties_nudged_at = ? WHERE id = ?", at.Unix(), matchID)
	return err
}

func (s *store) MarkForfeitWarned(matchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("UPDATE matches SET forfeit_warned_at = ? WHERE id = ?", at.Unix(), matchID)
	return err
}

// --- History ledgers ---

func (s *store) AppendRatingHistory(e *RatingHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO rating_history (player_profile_id, match_id, old_rating, new_rating, delta, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.PlayerProfileID, nullStr(e.MatchID), e.OldRating, e.NewRating, e.Delta, e.Reason, e.CreatedAt.Unix())
	return err
}

func (s *store) AppendRankHistory(e *RankHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO rank_history (player_profile_id, match_id, old_rank, new_rank, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.PlayerProfileID, nullStr(e.MatchID), nullInt(e.OldRank), nullInt(e.NewRank), e.Reason, e.CreatedAt.Unix())
	return err
}

func (s *store) GetRatingHistory(profileID string) ([]*RatingHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, player_profile_id, match_id, old_rating, new_rating, delta, reason, created_at
		FROM rating_history WHERE player_profile_id = ? ORDER BY id
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*RatingHistoryEntry
	for rows.Next() {
		var e RatingHistoryEntry
		var matchID sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.PlayerProfileID, &matchID, &e.OldRating, &e.NewRating, &e.Delta, &e.Reason, &createdAt); err != nil {
			log.Error("Failed to scan rating history row", "error", err)
			continue
		}
		e.MatchID = strPtr(matchID)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *store) GetRankHistory(profileID string) ([]*RankHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, player_profile_id, match_id, old_rank, new_rank, reason, created_at
		FROM rank_history WHERE player_profile_id = ? ORDER BY id
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*RankHistoryEntry
	for rows.Next() {
		var e RankHistoryEntry
		var matchID sql.NullString
		var oldRank, newRank sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.PlayerProfileID, &matchID, &oldRank, &newRank, &e.Reason, &createdAt); err != nil {
			log.Error("Failed to scan rank history row", "error", err)
			continue
		}
		e.MatchID = strPtr(matchID)
		e.OldRank = intPtr(oldRank)
		e.NewRank = intPtr(newRank)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ResetRatings puts every profile of a sport back at the baseline. Part of
// the full rebuild; deactivation metadata is deliberately untouched.
func (s *store) ResetRatings(sportID string, baseline int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE player_profiles
		SET rating = ?, matches_played = 0, ladder_rank = NULL
		WHERE sport_id = ?
	`, baseline, sportID)
	return err
}

// ClearHistory drops both ledgers for a sport so a rebuild can regenerate
// them from the match log.
func (s *store) ClearHistory(sportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		DELETE FROM rating_history
		WHERE player_profile_id IN (SELECT id FROM player_profiles WHERE sport_id = ?)
	`, sportID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`
		DELETE FROM rank_history
		WHERE player_profile_id IN (SELECT id FROM player_profiles WHERE sport_id = ?)
	`, sportID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
