package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/cloudevents/sdk-go/v2/event"
)

// PubSubAdapter provides message publishing using Google Cloud Pub/Sub.
// Events are sent in structured mode: the whole CloudEvent JSON is the
// message body and the ce-* attributes mirror its context.
type PubSubAdapter struct {
	Client *pubsub.Client
}

func (a *PubSubAdapter) PublishCloudEvent(ctx context.Context, topicID string, e event.Event) (string, error) {
	data, err := e.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal cloudevent: %w", err)
	}
	topic := a.Client.Topic(topicID)
	res := topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"ce-id":          e.ID(),
			"ce-type":        e.Type(),
			"ce-source":      e.Source(),
			"ce-specversion": e.SpecVersion(),
		},
	})
	return res.Get(ctx)
}

// LogPublisher is a mock publisher for local development
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) PublishCloudEvent(ctx context.Context, topicID string, e event.Event) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("MOCK PUBLISH", "component", "LogPublisher", "topic", topicID, "type", e.Type(), "data", string(e.Data()))
	return "mock-msg-id", nil
}
