package server

import (
	"context"
	"sync"
	"time"

	"github.com/esmcp/dispatch"
)

// sessionManager owns the HTTP transport's session table. One entry per
// Mcp-Session-Id; entries are reaped after idleTimeout without traffic,
// which is the HTTP equivalent of the stdio transport's EOF.
type sessionManager struct {
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	sess     *dispatch.Session
	lastSeen time.Time
}

func newSessionManager(idleTimeout time.Duration) *sessionManager {
	return &sessionManager{
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*sessionEntry),
	}
}

func (m *sessionManager) put(sess *dispatch.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID()] = &sessionEntry{sess: sess, lastSeen: time.Now()}
}

// get returns the session and refreshes its idle clock.
func (m *sessionManager) get(id string) (*dispatch.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = time.Now()
	return entry.sess, true
}

// remove closes and forgets a session. Closing cancels its in-flight work.
func (m *sessionManager) remove(id string) bool {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		entry.sess.Close()
	}
	return ok
}

func (m *sessionManager) closeAll() {
	m.mu.Lock()
	entries := make([]*sessionEntry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()

	for _, e := range entries {
		e.sess.Close()
	}
}

func (m *sessionManager) reap(now time.Time) int {
	m.mu.Lock()
	var stale []*sessionEntry
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.idleTimeout {
			stale = append(stale, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.sess.Close()
	}
	return len(stale)
}

func (m *sessionManager) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// run reaps idle sessions until ctx is done.
func (m *sessionManager) run(ctx context.Context) {
	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.reap(now)
		}
	}
}
