package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/keepsake/ports"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	revokedSessions map[string]time.Time
	mu              sync.RWMutex
	now             func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return &MemoryStore{
		revokedSessions: make(map[string]time.Time),
		now:             time.Now,
	}
}

// RevokeSession marks a progress session as revoked until expiry elapses
func (s *MemoryStore) RevokeSession(ctx context.Context, sessionID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.revokedSessions[sessionID] = s.now().Add(expiry)

	return nil
}

// IsSessionRevoked checks if a progress session is revoked
func (s *MemoryStore) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.revokedSessions[sessionID]
	if !exists {
		return false, nil
	}

	// Revocations lapse together with the tokens they cover
	if s.now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

// sweepLocked drops lapsed revocations; callers must hold the write lock
func (s *MemoryStore) sweepLocked() {
	now := s.now()
	for id, expiry := range s.revokedSessions {
		if now.After(expiry) {
			delete(s.revokedSessions, id)
		}
	}
}
