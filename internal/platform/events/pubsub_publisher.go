package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

// PubSubItemPublisher publishes catalog item change notifications to a Pub/Sub topic.
type PubSubItemPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubItemPublisher constructs a Pub/Sub backed item change publisher.
func NewPubSubItemPublisher(topic *pubsub.Topic) (*PubSubItemPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub item publisher: topic is required")
	}
	return &PubSubItemPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishItemChanged sends event and waits for the server-assigned message id.
func (p *PubSubItemPublisher) PublishItemChanged(ctx context.Context, event services.ItemChangedEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub item publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal item event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "kind", string(event.Kind))
	setAttr(attrs, "siteKey", event.SiteKey)
	if len(event.ItemIDs) == 1 {
		setAttr(attrs, "itemId", event.ItemIDs[0])
	}

	msg := &pubsub.Message{Data: data, Attributes: attrs}
	// Per-site ordering keeps a save followed by a delete in sequence for consumers.
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = strings.TrimSpace(event.SiteKey)
	}
	result := p.topic.Publish(ctx, msg)

	id, err := result.Get(ctx)
	if err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return "", fmt.Errorf("publish item event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages and stops the topic's publish goroutines.
func (p *PubSubItemPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
