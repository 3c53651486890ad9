package http

import (
	"net/http"

	"github.com/mauv0809/refactored-ladder/internal/config"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/lifecycle"
	"github.com/mauv0809/refactored-ladder/internal/metrics"
	"github.com/mauv0809/refactored-ladder/internal/notifier"
	"github.com/mauv0809/refactored-ladder/internal/rating"
	"github.com/mauv0809/refactored-ladder/internal/scheduler"
)

func NewServer(store ladder.LadderStore, machine *lifecycle.Machine, ratings *rating.Engine, sweeper *scheduler.Sweeper, metricsSvc metrics.Metrics, metricsHandler http.Handler, notifier notifier.Notifier, cfg config.Config) *Server {
	server := &Server{
		Store:          store,
		Machine:        machine,
		Ratings:        ratings,
		Sweeper:        sweeper,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Notifier:       notifier,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	s.Router.Handle("/metrics", s.MetricsHandler)
	s.Router.Handle("/health", Chain(s.HealthCheckHandler(), paramsMiddleware))

	// Read APIs
	s.Router.Handle("/sports", Chain(s.ListSportsHandler(), paramsMiddleware))
	s.Router.Handle("/standings", Chain(s.StandingsHandler(), paramsMiddleware))
	s.Router.Handle("/matches", Chain(s.ListMatchesHandler(), paramsMiddleware))
	s.Router.Handle("/eligible", Chain(s.EligibleOpponentsHandler(), paramsMiddleware))
	s.Router.Handle("/members", Chain(s.ListMembersHandler(), paramsMiddleware))

	// Mutations
	s.Router.Handle("/profiles", Chain(s.RegisterHandler(), paramsMiddleware))
	s.Router.Handle("/challenges", Chain(s.ChallengeHandler(), paramsMiddleware))
	s.Router.Handle("/matches/action", Chain(s.MatchActionHandler(), paramsMiddleware))

	// Scheduler tick, hit by external cron as well as gocron.
	s.Router.Handle("/sweep", Chain(s.SweepHandler(), paramsMiddleware))

	// Admin surface
	s.Router.Handle("/admin/override", Chain(s.AdminOverrideHandler(), paramsMiddleware, s.adminMiddleware))
	s.Router.Handle("/admin/recompute", Chain(s.RecomputeHandler(), paramsMiddleware, s.adminMiddleware))
	s.Router.Handle("/admin/process-match", Chain(s.ProcessMatchHandler(), paramsMiddleware, s.adminMiddleware))
	s.Router.Handle("/admin/deactivate", Chain(s.BulkDeactivateHandler(), paramsMiddleware, s.adminMiddleware))
	s.Router.Handle("/admin/reinstate", Chain(s.ReinstateHandler(), paramsMiddleware, s.adminMiddleware))
	s.Router.Handle("/admin/pause", Chain(s.PauseSportHandler(), paramsMiddleware, s.adminMiddleware))
	s.Router.Handle("/admin/announce-standings", Chain(s.AnnounceStandingsHandler(), paramsMiddleware, s.adminMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
