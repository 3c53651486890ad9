package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncTransitionsApplied()
	IncTransitionsRejected()
	IncSweepRuns()
	IncRatingUpdates()
	ObserveRebuildDuration(duration float64)
	IncNotificationsSent()
	IncNotificationsFailed()
	IncEventsPublished()
	IncEventsFailed()
	SetStartupTime(duration float64)
}
