package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		TransitionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_transitions_applied_total",
			Help: "The total number of match state transitions applied.",
		}),
		TransitionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_transitions_rejected_total",
			Help: "The total number of match state transitions rejected by validation or preconditions.",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_sweep_runs_total",
			Help: "The total number of times the scheduler sweep has run.",
		}),
		RatingUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_rating_updates_total",
			Help: "The total number of Elo rating updates applied.",
		}),
		RebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ladder_rebuild_duration_seconds",
			Help:    "The duration of full rating rebuilds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_notifications_sent_total",
			Help: "The total number of notifications successfully sent.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_notifications_failed_total",
			Help: "The total number of notifications that failed to send.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_events_published_total",
			Help: "The total number of lifecycle events published to the event stream.",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_events_failed_total",
			Help: "The total number of lifecycle events that failed to publish.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ladder_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.TransitionsApplied,
		s.TransitionsRejected,
		s.SweepRuns,
		s.RatingUpdates,
		s.RebuildDuration,
		s.NotificationsSent,
		s.NotificationsFailed,
		s.EventsPublished,
		s.EventsFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncTransitionsApplied() {
	s.TransitionsApplied.Inc()
}

func (s *Service) IncTransitionsRejected() {
	s.TransitionsRejected.Inc()
}

func (s *Service) IncSweepRuns() {
	s.SweepRuns.Inc()
}

func (s *Service) IncRatingUpdates() {
	s.RatingUpdates.Inc()
}

func (s *Service) ObserveRebuildDuration(duration float64) {
	s.RebuildDuration.Observe(duration)
}

func (s *Service) IncNotificationsSent() {
	s.NotificationsSent.Inc()
}

func (s *Service) IncNotificationsFailed() {
	s.NotificationsFailed.Inc()
}

func (s *Service) IncEventsPublished() {
	s.EventsPublished.Inc()
}

func (s *Service) IncEventsFailed() {
	s.EventsFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
