package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/lifecycle"
	"github.com/mauv0809/refactored-ladder/internal/ranking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to write response", "error", err)
	}
}

// writeDomainError maps the typed error taxonomy onto HTTP statuses.
// Precondition failures are not errors to the caller: the action was simply
// already handled, so they come back as 200 with a not_applicable outcome.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *ladder.ValidationError
	var aerr *ladder.AuthorizationError
	var perr *ladder.PreconditionError
	var cerr *ladder.ConflictError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &aerr):
		http.Error(w, aerr.Error(), http.StatusForbidden)
	case errors.As(err, &perr):
		writeJSON(w, http.StatusOK, lifecycle.Result{Outcome: lifecycle.OutcomeNotApplicable})
	case errors.As(err, &cerr):
		http.Error(w, cerr.Error(), http.StatusConflict)
	default:
		log.Error("Request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

func (s *Server) ListSportsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sports, err := s.Store.ListSports()
		if err != nil {
			log.Error("Failed to list sports", "error", err)
			http.Error(w, "Failed to list sports", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sports)
	}
}

func (s *Server) StandingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sportID := r.URL.Query().Get("sport_id")
		if sportID == "" {
			http.Error(w, "sport_id is required", http.StatusUnprocessableEntity)
			return
		}
		profiles, err := s.Store.GetProfiles(sportID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		ranked := make([]*ladder.PlayerProfile, 0, len(profiles))
		for _, p := range profiles {
			if p.LadderRank != nil {
				ranked = append(ranked, p)
			}
		}
		sort.Slice(ranked, func(i, j int) bool {
			return *ranked[i].LadderRank < *ranked[j].LadderRank
		})
		// format=blocks returns the rendered notification payload, so bots can
		// relay standings without reimplementing the formatting.
		if r.URL.Query().Get("format") == "blocks" {
			sport, err := s.Store.GetSport(sportID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			blocks, err := s.Notifier.FormatStandingsResponse(sport, ranked)
			if err != nil {
				log.Error("Failed to format standings", "sport", sportID, "error", err)
				http.Error(w, "failed to format standings", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, blocks)
			return
		}
		writeJSON(w, http.StatusOK, ranked)
	}
}

func (s *Server) ListMembersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sportID := r.URL.Query().Get("sport_id")
		if sportID == "" {
			http.Error(w, "sport_id is required", http.StatusUnprocessableEntity)
			return
		}
		profiles, err := s.Store.GetProfiles(sportID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profiles)
	}
}

func (s *Server) ListMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sportID := r.URL.Query().Get("sport_id")
		if sportID == "" {
			http.Error(w, "sport_id is required", http.StatusUnprocessableEntity)
			return
		}
		var matches []*ladder.Match
		var err error
		if status := r.URL.Query().Get("status"); status != "" {
			matches, err = s.Store.GetMatchesByStatus(sportID, ladder.MatchStatus(status))
		} else {
			matches, err = s.Store.GetMatchesBySport(sportID)
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func (s *Server) EligibleOpponentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID := r.URL.Query().Get("profile_id")
		if profileID == "" {
			http.Error(w, "profile_id is required", http.StatusUnprocessableEntity)
			return
		}
		me, err := s.Store.GetProfile(profileID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		sport, err := s.Store.GetSport(me.SportID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		cfg := sport.ScoringConfig.Normalize()

		now := time.Now().UTC()
		history, err := s.Store.GetMatchesInvolving(profileID, now.AddDate(0, 0, -cfg.RematchCooldownDays))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		recent := ranking.CooldownOpponents(history, profileID, cfg.RematchCooldownDays, now)

		profiles, err := s.Store.GetProfiles(sport.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		eligible := ranking.EligibleOpponents(profiles, me, cfg, sport.IsPaused, recent)
		if eligible == nil {
			eligible = []*ladder.PlayerProfile{}
		}
		writeJSON(w, http.StatusOK, eligible)
	}
}

type registerRequest struct {
	UserID  string `json:"user_id"`
	SportID string `json:"sport_id"`
	Name    string `json:"name"`
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusUnprocessableEntity)
			return
		}
		if req.UserID == "" || req.SportID == "" || req.Name == "" {
			http.Error(w, "user_id, sport_id and name are required", http.StatusUnprocessableEntity)
			return
		}
		p := &ladder.PlayerProfile{
			UserID:  req.UserID,
			SportID: req.SportID,
			Name:    req.Name,
		}
		if err := s.Machine.Register(p, isDryRunFromContext(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

type challengeRequest struct {
	ChallengerID string `json:"challenger_id"`
	DefenderID   string `json:"defender_id"`
	Message      string `json:"message"`
}

func (s *Server) ChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req challengeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusUnprocessableEntity)
			return
		}
		res, err := s.Machine.Challenge(req.ChallengerID, req.DefenderID, req.Message, isDryRunFromContext(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

type matchActionRequest struct {
	MatchID  string            `json:"match_id"`
	Token    string            `json:"token"`
	Action   string            `json:"action"`
	ActorID  string            `json:"actor_id"`
	WinnerID string            `json:"winner_id,omitempty"`
	Accept   *bool             `json:"accept,omitempty"`
	Sets     []ladder.SetScore `json:"sets,omitempty"`
}

// MatchActionHandler dispatches capability-link actions. The link carries
// (match, token, action, actor); the handler routes to the state machine.
func (s *Server) MatchActionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req matchActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusUnprocessableEntity)
			return
		}
		dryRun := isDryRunFromContext(r)

		var res *lifecycle.Result
		var err error
		switch req.Action {
		case "accept":
			res, err = s.Machine.Accept(req.MatchID, req.Token, req.ActorID, dryRun)
		case "withdraw":
			res, err = s.Machine.Withdraw(req.MatchID, req.Token, req.ActorID, dryRun)
		case "decline":
			res, err = s.Machine.Decline(req.MatchID, req.Token, req.ActorID, dryRun)
		case "forfeit":
			res, err = s.Machine.Forfeit(req.MatchID, req.Token, req.ActorID, dryRun)
		case "submit_result":
			res, err = s.Machine.SubmitResult(req.MatchID, req.Token, req.ActorID, req.WinnerID, req.Sets, dryRun)
		case "verify":
			if req.Accept == nil {
				http.Error(w, "accept is required for verify", http.StatusUnprocessableEntity)
				return
			}
			res, err = s.Machine.Verify(req.MatchID, req.Token, req.ActorID, *req.Accept, dryRun)
		default:
			http.Error(w, "unknown action", http.StatusUnprocessableEntity)
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) SweepHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.Sweeper.Sweep(time.Now().UTC(), isDryRunFromContext(r))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Sweep finished")
	}
}

type overrideRequest struct {
	MatchID  string  `json:"match_id"`
	Status   string  `json:"status"`
	WinnerID *string `json:"winner_id,omitempty"`
}

func (s *Server) AdminOverrideHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req overrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusUnprocessableEntity)
			return
		}
		res, err := s.Machine.AdminOverride(req.MatchID, ladder.MatchStatus(req.Status), req.WinnerID, isDryRunFromContext(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) RecomputeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sportID := r.URL.Query().Get("sport_id")
		if sportID == "" {
			http.Error(w, "sport_id is required", http.StatusUnprocessableEntity)
			return
		}
		if isDryRunFromContext(r) {
			log.Info("[Dry Run] Would rebuild ratings", "sport", sportID)
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := s.Ratings.RecomputeAll(sportID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Rebuild finished")
	}
}

func (s *Server) ProcessMatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		matchID := r.URL.Query().Get("match_id")
		if matchID == "" {
			http.Error(w, "match_id is required", http.StatusUnprocessableEntity)
			return
		}
		if err := s.Ratings.ProcessMatch(matchID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Match processed")
	}
}

type deactivateRequest struct {
	SportID    string   `json:"sport_id"`
	ProfileIDs []string `json:"profile_ids"`
}

func (s *Server) BulkDeactivateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req deactivateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusUnprocessableEntity)
			return
		}
		if err := s.Machine.BulkDeactivate(req.SportID, req.ProfileIDs, isDryRunFromContext(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Deactivated %d profiles", len(req.ProfileIDs))
	}
}

func (s *Server) ReinstateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		profileID := r.URL.Query().Get("profile_id")
		if profileID == "" {
			http.Error(w, "profile_id is required", http.StatusUnprocessableEntity)
			return
		}
		if err := s.Machine.Reinstate(profileID, isDryRunFromContext(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Profile reinstated")
	}
}

// AnnounceStandingsHandler posts the current ladder standings to the
// notification channel.
func (s *Server) AnnounceStandingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sportID := r.URL.Query().Get("sport_id")
		if sportID == "" {
			http.Error(w, "sport_id is required", http.StatusUnprocessableEntity)
			return
		}
		sport, err := s.Store.GetSport(sportID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		profiles, err := s.Store.GetProfiles(sportID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		ranked := make([]*ladder.PlayerProfile, 0, len(profiles))
		for _, p := range profiles {
			if p.LadderRank != nil {
				ranked = append(ranked, p)
			}
		}
		sort.Slice(ranked, func(i, j int) bool {
			return *ranked[i].LadderRank < *ranked[j].LadderRank
		})
		if err := s.Notifier.SendStandings(sport, ranked, isDryRunFromContext(r)); err != nil {
			log.Error("Failed to announce standings", "sport", sportID, "error", err)
			http.Error(w, "failed to announce standings", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Standings announced")
	}
}

func (s *Server) PauseSportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sportID := r.URL.Query().Get("sport_id")
		if sportID == "" {
			http.Error(w, "sport_id is required", http.StatusUnprocessableEntity)
			return
		}
		paused := r.URL.Query().Get("paused") != "false"
		if err := s.Store.SetSportPaused(sportID, paused); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Sport %s paused=%t", sportID, paused)
	}
}
