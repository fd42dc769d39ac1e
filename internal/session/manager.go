package session

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Manager owns the live sessions. Sessions idle for longer than the TTL are
// torn down by the sweeper; End tears one down immediately.
type Manager struct {
	mu       sync.Mutex
	cache    *gocache.Cache
	greeting string
	onEnd    func(*Session)
}

// NewManager creates a manager. onEnd, when non-nil, runs once for every
// session that ends, whether by End, Close or idle expiry.
func NewManager(greeting string, idleTTL time.Duration, onEnd func(*Session)) *Manager {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	cleanup := idleTTL / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}

	m := &Manager{
		cache:    gocache.New(idleTTL, cleanup),
		greeting: greeting,
		onEnd:    onEnd,
	}
	m.cache.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*Session); ok && m.onEnd != nil {
			m.onEnd(s)
		}
	})
	return m
}

// GetOrCreate returns the session for id, creating it when absent or
// expired. An empty id always creates a new session. Access refreshes the
// idle timer.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	// expired sessions must end before an id is reused
	m.cache.DeleteExpired()

	if id != "" {
		if v, ok := m.cache.Get(id); ok {
			s := v.(*Session)
			m.cache.SetDefault(id, s)
			return s
		}
	}

	var s *Session
	if id == "" {
		s = New(m.greeting)
	} else {
		s = newWithID(id, m.greeting)
	}
	m.cache.SetDefault(s.ID, s)
	return s
}

// End tears down the session for id; unknown ids are ignored
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(id)
}

// Sweep tears down every expired session now
func (m *Manager) Sweep() {
	m.cache.DeleteExpired()
}

// Count returns the number of live sessions, expired ones included until swept
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

// Close ends every session
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.DeleteExpired()
	for id := range m.cache.Items() {
		m.cache.Delete(id)
	}
}
