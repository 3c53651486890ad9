package events

import (
	"time"

	"cloud.google.com/go/pubsub"
)

type client struct {
	client   *pubsub.Client
	topic    string
	teardown func()
}

// EventType represents the type of event/message sent via pubsub.
type EventType string

const (
	EventChallengeCreated  EventType = "challenge-created"
	EventChallengeAccepted EventType = "challenge-accepted"
	EventResultReported    EventType = "result-reported"
	EventMatchProcessed    EventType = "match-processed"
	EventMatchDisputed     EventType = "match-disputed"
	EventMatchCancelled    EventType = "match-cancelled"
	EventRanksRebuilt      EventType = "ranks-rebuilt"
	EventPlayerPenalised   EventType = "player-penalised"
	EventPlayerRemoved     EventType = "player-removed"
)

// Envelope wraps every published payload with its event type and timestamp.
// Consumers route on the event field without decoding the payload.
type Envelope struct {
	Event      EventType `msgpack:"event"`
	OccurredAt int64     `msgpack:"occurred_at"`
	Payload    any       `msgpack:"payload,omitempty"`
}

// NewEnvelope stamps an envelope with the current time.
func NewEnvelope(event EventType, payload any) Envelope {
	return Envelope{
		Event:      event,
		OccurredAt: time.Now().Unix(),
		Payload:    payload,
	}
}
