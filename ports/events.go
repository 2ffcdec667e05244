package ports

import (
	"context"

	"github.com/layer-3/keepsake/core"
)

// EventPublisher publishes unlock events for other instances and observers
type EventPublisher interface {
	PublishUnlocked(ctx context.Context, event core.UnlockEvent) error
}
