package ports

import (
	"context"
	"time"
)

// Store records progress sessions that were reset and must not be resumed
type Store interface {
	RevokeSession(ctx context.Context, sessionID string, expiry time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
}
