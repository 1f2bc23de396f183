package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-process revocation ledger with the same observable
// contract as the Redis-backed [Ledger]. Suited to tests and single-node
// deployments; entries do not survive a restart.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemoryLedger creates an empty in-process revocation ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]time.Time)}
}

// Revoke marks a token ID revoked until expiresAt. Idempotent; expired tokens
// are a no-op.
func (m *MemoryLedger) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if time.Until(expiresAt) <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tokenID] = expiresAt
	return nil
}

// RevokeNX marks a token ID revoked and reports whether this call created the
// entry. Expired tokens report a vacuous win, matching the Redis ledger.
func (m *MemoryLedger) RevokeNX(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	now := time.Now()
	if expiresAt.Sub(now) <= 0 {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[tokenID]; ok && existing.After(now) {
		return false, nil
	}
	m.entries[tokenID] = expiresAt
	return true, nil
}

// IsRevoked reports whether a token ID currently has a live entry.
func (m *MemoryLedger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	now := time.Now()

	m.mu.RLock()
	expiresAt, ok := m.entries[tokenID]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if !expiresAt.After(now) {
		m.mu.Lock()
		if current, still := m.entries[tokenID]; still && !current.After(now) {
			delete(m.entries, tokenID)
		}
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Cleanup removes entries whose expiry is at or before now and returns the
// number removed.
func (m *MemoryLedger) Cleanup(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int
	for tokenID, expiresAt := range m.entries {
		if !expiresAt.After(now) {
			delete(m.entries, tokenID)
			removed++
		}
	}
	return removed, nil
}

// Ping reports availability; an in-process ledger is always reachable.
func (m *MemoryLedger) Ping(ctx context.Context) (time.Duration, error) {
	return 0, nil
}
