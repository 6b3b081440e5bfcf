// Package idempotency makes order submissions safe to retry. A client sends
// an Idempotency-Key header; the first request reserves the key, and once the
// order is committed the key maps to its id so retries replay the result.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// MaxKeyLength bounds accepted keys.
const MaxKeyLength = 128

var (
	// ErrInProgress means another request holds the key and has not finished.
	ErrInProgress = errors.New("request_in_progress")
	ErrInvalidKey = errors.New("invalid_idempotency_key")
)

// Store records which order a key produced.
type Store interface {
	// Reserve claims key. It returns 0 when the caller now owns the key, or the
	// id of the order a previous request already completed.
	Reserve(ctx context.Context, key string) (uint, error)
	// Complete binds a reserved key to the created order.
	Complete(ctx context.Context, key string, orderID uint) error
	// Release frees a reserved key after a failed attempt.
	Release(ctx context.Context, key string) error
}

// ValidKey checks the key shape before it reaches a store.
func ValidKey(key string) error {
	if key == "" || len(key) > MaxKeyLength || strings.ContainsAny(key, " \t\r\n") {
		return ErrInvalidKey
	}
	return nil
}

// MemoryStore is a process-local Store with TTL expiry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	orderID   uint
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Reserve(_ context.Context, key string) (uint, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		if e.orderID == 0 {
			return 0, ErrInProgress
		}
		return e.orderID, nil
	}
	m.entries[key] = memoryEntry{expiresAt: now.Add(m.ttl)}
	return 0, nil
}

func (m *MemoryStore) Complete(_ context.Context, key string, orderID uint) error {
	m.mu.Lock()
	m.entries[key] = memoryEntry{orderID: orderID, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	if e, ok := m.entries[key]; ok && e.orderID == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}
