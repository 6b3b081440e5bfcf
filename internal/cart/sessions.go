package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sessions keeps one Cart per storefront session, with TTL-based expiry
// refreshed on every access. Carts are process-local and lost on restart.
type Sessions struct {
	carts map[string]*sessionEntry
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
}

type sessionEntry struct {
	cart      *Cart
	expiresAt time.Time
}

// NewSessions creates a store whose idle carts expire after ttl.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		carts: make(map[string]*sessionEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cart of a session, creating an empty one when the session
// is unknown or expired. Each access pushes the expiry back by ttl.
func (s *Sessions) Get(id string) *Cart {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.carts[id]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &sessionEntry{cart: New()}
		s.carts[id] = entry
	}
	entry.expiresAt = now.Add(s.ttl)
	return entry.cart
}

// Sweep drops expired carts and returns how many were removed.
func (s *Sessions) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.carts {
		if !now.Before(e.expiresAt) {
			delete(s.carts, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions, expired ones included.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}

// Janitor sweeps expired carts every interval until ctx is done.
func (s *Sessions) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("expired carts swept", "count", n)
			}
		}
	}
}
