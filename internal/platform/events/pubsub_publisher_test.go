package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

func newTestTopic(t *testing.T, ordered bool) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "catalog-items")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	topic.EnableMessageOrdering = ordered
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestPubSubItemPublisherPublishesMessage(t *testing.T) {
	srv, topic := newTestTopic(t, false)
	publisher, err := NewPubSubItemPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubItemPublisher: %v", err)
	}

	event := services.ItemChangedEvent{
		Kind:       services.ItemSaved,
		SiteKey:    "shop",
		ItemIDs:    []string{"item-1"},
		Actor:      "editor-uid",
		OccurredAt: time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
	}
	if _, err := publisher.PublishItemChanged(context.Background(), event); err != nil {
		t.Fatalf("PublishItemChanged: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload services.ItemChangedEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Kind != services.ItemSaved || payload.SiteKey != "shop" || len(payload.ItemIDs) != 1 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["itemId"]; attr != "item-1" {
		t.Fatalf("expected itemId attribute, got %q", attr)
	}
	if messages[0].OrderingKey != "" {
		t.Fatalf("ordering key should be empty when ordering is disabled")
	}
}

func TestPubSubItemPublisherOrdersBySite(t *testing.T) {
	srv, topic := newTestTopic(t, true)
	publisher, _ := NewPubSubItemPublisher(topic)

	event := services.ItemChangedEvent{Kind: services.ItemsReordered, SiteKey: "shop", ItemIDs: []string{"a", "b"}}
	if _, err := publisher.PublishItemChanged(context.Background(), event); err != nil {
		t.Fatalf("PublishItemChanged: %v", err)
	}
	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].OrderingKey != "shop" {
		t.Fatalf("expected ordering key shop, got %q", messages[0].OrderingKey)
	}
	if _, ok := messages[0].Attributes["itemId"]; ok {
		t.Fatalf("itemId attribute should be omitted for multi-item events")
	}
}

func TestNewPubSubItemPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubItemPublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
