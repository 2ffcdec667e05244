package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/ports"
)

// TopicUnlocked carries core.UnlockEvent payloads
const TopicUnlocked = "keepsake.unlocked"

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     TopicUnlocked,
	}
}

// PublishUnlocked publishes an unlock event. The payload only carries ids
// and the frontier, never anything derived from the answer.
func (p *WatermillPublisher) PublishUnlocked(ctx context.Context, event core.UnlockEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("session_id", event.SessionID)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
