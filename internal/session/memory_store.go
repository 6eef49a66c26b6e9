package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by the local REPL and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	locks    map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory store. A zero ttl keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		locks:    make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, tenantID, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(tenantID, userID)
	sess, ok := m.sessions[key]
	if !ok {
		return New(tenantID, userID), nil
	}
	if m.ttl > 0 && m.now().Sub(sess.UpdatedAt) > m.ttl {
		delete(m.sessions, key)
		return New(tenantID, userID), nil
	}
	return &sess, nil
}

func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess.UpdatedAt = m.now().UTC()
	m.sessions[sessionKey(sess.TenantID, sess.UserID)] = *sess
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, tenantID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionKey(tenantID, userID))
	return nil
}

func (m *MemoryStore) Lock(ctx context.Context, tenantID, userID string) (func(), error) {
	m.mu.Lock()
	key := lockKey(tenantID, userID)
	ch, ok := m.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[key] = ch
	}
	m.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ Store = (*MemoryStore)(nil)
