package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/ports"
	"github.com/sirupsen/logrus"
)

// NewInProcessPubSub returns a Go channel pub/sub that delivers unlock
// events in publish order. Publish returns once every subscriber has acked.
func NewInProcessPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, logger)
}

// LogUnlocks consumes unlock events from subscriber and logs them until ctx
// is cancelled or the subscription closes.
func LogUnlocks(ctx context.Context, subscriber message.Subscriber, logger logrus.FieldLogger) error {
	messages, err := subscriber.Subscribe(ctx, TopicUnlocked)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicUnlocked, err)
	}

	go func() {
		for msg := range messages {
			var event core.UnlockEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.WithError(err).WithField("message_id", msg.UUID).Warn("dropping malformed unlock event")
				msg.Ack()
				continue
			}

			entry := logger.WithFields(logrus.Fields{
				"session_id":     event.SessionID,
				"question_id":    event.QuestionID,
				"unlocked_up_to": event.UnlockedUpTo,
			})
			if event.Complete {
				entry.Info("all questions unlocked")
			} else {
				entry.Info("question unlocked")
			}
			msg.Ack()
		}
	}()

	return nil
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops every event
func NewNopPublisher() ports.EventPublisher {
	return nopPublisher{}
}

func (nopPublisher) PublishUnlocked(context.Context, core.UnlockEvent) error {
	return nil
}
