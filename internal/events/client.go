package events

import (
	"context"

	"cloud.google.com/go/pubsub"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// New creates a Publisher backed by Google Cloud Pub/Sub. All events go to a
// single topic; consumers filter on the envelope's event type.
func New(projectID, topic string) Publisher {
	ctx := context.Background()
	pubSubC, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		log.Fatalf("Failed to create pubsub client: %v", err)
	}
	teardown := func() {
		pubSubC.Close()
	}

	return &client{
		client:   pubSubC,
		topic:    topic,
		teardown: teardown,
	}
}

func (c *client) Publish(event EventType, payload any) error {
	ctx := context.Background()

	env := NewEnvelope(event, payload)
	msgpackData, err := msgpack.Marshal(env)
	if err != nil {
		log.Error("MessagePack marshal error", "error", err)
		return err
	}
	message := &pubsub.Message{
		Data: msgpackData,
	}
	result := c.client.Topic(c.topic).Publish(ctx, message)
	serverID, err := result.Get(ctx)
	if err != nil {
		log.Error("Failed to publish event", "error", err, "topic", c.topic, "event", event)
		return err
	}
	log.Info("Published event", "event", event, "serverID", serverID)
	return nil
}

func (c *client) Decode(data []byte, returnValue any) error {
	err := msgpack.Unmarshal(data, returnValue)
	if err != nil {
		log.Error("MessagePack unmarshal error", "error", err)
		return err
	}
	return nil
}

func (c *client) Close() {
	c.teardown()
}
