package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds the Prometheus collectors for the ladder service.
type Service struct {
	TransitionsApplied  prometheus.Counter
	TransitionsRejected prometheus.Counter
	SweepRuns           prometheus.Counter
	RatingUpdates       prometheus.Counter
	RebuildDuration     prometheus.Histogram
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	EventsPublished     prometheus.Counter
	EventsFailed        prometheus.Counter
	StartupTimeSeconds  prometheus.Gauge
}
