package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	sess     *Session
	deadline time.Time
}

// MemoryStore is an in-process session store with the same observable contract
// as the Redis-backed [Store]. Suited to tests and single-node deployments;
// state does not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*memoryEntry
	subjects  map[string]map[string]struct{}
	anomalies map[string]time.Time
}

// NewMemoryStore creates an empty in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*memoryEntry),
		subjects:  make(map[string]map[string]struct{}),
		anomalies: make(map[string]time.Time),
	}
}

func cloneSession(s *Session) *Session {
	cp := *s
	return &cp
}

func (m *MemoryStore) gone(entry *memoryEntry, now time.Time) bool {
	return now.After(entry.deadline) || now.Unix() > entry.sess.ExpiresAt
}

func (m *MemoryStore) removeLocked(sessionID string) {
	entry, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	delete(m.sessions, sessionID)
	if ids, ok := m.subjects[entry.sess.SubjectID]; ok {
		delete(ids, sessionID)
		if len(ids) == 0 {
			delete(m.subjects, entry.sess.SubjectID)
		}
	}
}

// Save stores a session under its ID for at most ttl.
func (m *MemoryStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneSession(sess)
	cp.SchemaVersion = CurrentSchemaVersion
	m.sessions[sess.SessionID] = &memoryEntry{
		sess:     cp,
		deadline: time.Now().Add(ttl),
	}
	ids, ok := m.subjects[sess.SubjectID]
	if !ok {
		ids = make(map[string]struct{})
		m.subjects[sess.SubjectID] = ids
	}
	ids[sess.SessionID] = struct{}{}
	return nil
}

// Get returns the stored session, (nil, nil) when missing or expired.
// Expired records are dropped on read, matching the Redis store.
func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if m.gone(entry, time.Now()) {
		m.removeLocked(sessionID)
		return nil, nil
	}
	return cloneSession(entry.sess), nil
}

// GetReadOnly returns the stored session without dropping expired records.
func (m *MemoryStore) GetReadOnly(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[sessionID]
	if !ok || m.gone(entry, time.Now()) {
		return nil, nil
	}
	return cloneSession(entry.sess), nil
}

// Invalidate flips the session inactive; missing, expired, and already
// inactive sessions are a no-op.
func (m *MemoryStore) Invalidate(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	if m.gone(entry, time.Now()) {
		m.removeLocked(sessionID)
		return nil
	}
	entry.sess.Active = false
	return nil
}

// Extend renews the session's absolute expiry to now+ttl.
// Missing, expired, and inactive sessions yield (nil, nil).
func (m *MemoryStore) Extend(ctx context.Context, sessionID string, ttl time.Duration) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	now := time.Now()
	if m.gone(entry, now) {
		m.removeLocked(sessionID)
		return nil, nil
	}
	if !entry.sess.Active {
		return nil, nil
	}

	entry.sess.ExpiresAt = now.Add(ttl).Unix()
	entry.deadline = now.Add(ttl)
	return cloneSession(entry.sess), nil
}

// BumpMinRefreshVersion increments the refresh family floor and returns it.
// A missing or expired session yields (0, nil).
func (m *MemoryStore) BumpMinRefreshVersion(ctx context.Context, sessionID string) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	if m.gone(entry, time.Now()) {
		m.removeLocked(sessionID)
		return 0, nil
	}
	entry.sess.MinRefreshVersion++
	return entry.sess.MinRefreshVersion, nil
}

// Delete removes a session and its index entry.
func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(sessionID)
	return nil
}

// InvalidateAllForSubject flips every live session of the subject inactive and
// reports how many were flipped.
func (m *MemoryStore) InvalidateAllForSubject(ctx context.Context, subjectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var flipped int
	for sessionID := range m.subjects[subjectID] {
		entry, ok := m.sessions[sessionID]
		if !ok {
			continue
		}
		if m.gone(entry, now) {
			m.removeLocked(sessionID)
			continue
		}
		if entry.sess.Active {
			entry.sess.Active = false
			flipped++
		}
	}
	return flipped, nil
}

// ActiveSessionCount returns the number of tracked session IDs for a subject.
func (m *MemoryStore) ActiveSessionCount(ctx context.Context, subjectID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subjects[subjectID]), nil
}

// ActiveSessionIDs returns tracked session IDs for a subject.
func (m *MemoryStore) ActiveSessionIDs(ctx context.Context, subjectID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.subjects[subjectID]))
	for sessionID := range m.subjects[subjectID] {
		ids = append(ids, sessionID)
	}
	return ids, nil
}

// SessionCount returns the number of records currently held, expired or not.
func (m *MemoryStore) SessionCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// EstimateActiveSessions counts live records, invalidated or not, mirroring
// what the Redis adapter's key scan reports.
func (m *MemoryStore) EstimateActiveSessions(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	count := 0
	for _, entry := range m.sessions {
		if !m.gone(entry, now) {
			count++
		}
	}
	return count, nil
}

// Ping reports availability; an in-process store is always reachable.
func (m *MemoryStore) Ping(ctx context.Context) (time.Duration, error) {
	return 0, nil
}

// ShouldEmitBindingAnomaly returns true only for the first anomaly in the
// window per session/kind.
func (m *MemoryStore) ShouldEmitBindingAnomaly(ctx context.Context, sessionID, kind string, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionID + ":" + kind
	now := time.Now()
	if until, ok := m.anomalies[key]; ok && now.Before(until) {
		return false, nil
	}
	m.anomalies[key] = now.Add(window)
	return true, nil
}
