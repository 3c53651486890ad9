package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                  sync.Mutex
	transitionsApplied  int
	transitionsRejected int
	sweepRuns           int
	ratingUpdates       int
	rebuildDurations    []float64
	notificationsSent   int
	notificationsFailed int
	eventsPublished     int
	eventsFailed        int
	startupTime         float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		rebuildDurations: make([]float64, 0),
	}
}

func (m *Mock) IncTransitionsApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionsApplied++
}

func (m *Mock) IncTransitionsRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionsRejected++
}

func (m *Mock) IncSweepRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepRuns++
}

func (m *Mock) IncRatingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratingUpdates++
}

func (m *Mock) ObserveRebuildDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuildDurations = append(m.rebuildDurations, duration)
}

func (m *Mock) IncNotificationsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationsSent++
}

func (m *Mock) IncNotificationsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationsFailed++
}

func (m *Mock) IncEventsPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsPublished++
}

func (m *Mock) IncEventsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// TransitionsApplied returns the number of times IncTransitionsApplied was called.
func (m *Mock) TransitionsApplied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionsApplied
}

// TransitionsRejected returns the number of times IncTransitionsRejected was called.
func (m *Mock) TransitionsRejected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionsRejected
}

// SweepRuns returns the number of times IncSweepRuns was called.
func (m *Mock) SweepRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepRuns
}

// RatingUpdates returns the number of times IncRatingUpdates was called.
func (m *Mock) RatingUpdates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratingUpdates
}

// NotificationsSent returns the number of times IncNotificationsSent was called.
func (m *Mock) NotificationsSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notificationsSent
}

// NotificationsFailed returns the number of times IncNotificationsFailed was called.
func (m *Mock) NotificationsFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notificationsFailed
}

// EventsPublished returns the number of times IncEventsPublished was called.
func (m *Mock) EventsPublished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsPublished
}

// EventsFailed returns the number of times IncEventsFailed was called.
func (m *Mock) EventsFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsFailed
}

// RebuildDurations returns every observed rebuild duration.
func (m *Mock) RebuildDurations() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.rebuildDurations...)
}
