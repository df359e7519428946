package web

import (
	"sync"
)

// SessionMetrics tracks connected sessions.
type SessionMetrics interface {
	SessionOpened()
	SessionClosed()
}

// Registry indexes live sessions by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  SessionMetrics
}

// NewRegistry returns an empty registry. metrics may be nil.
func NewRegistry(metrics SessionMetrics) *Registry {
	return &Registry{sessions: make(map[string]*Session), metrics: metrics}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.SessionOpened()
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok && r.metrics != nil {
		r.metrics.SessionClosed()
	}
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll drops every connection; each session then tears itself down.
// http.Server.Shutdown does not track hijacked websocket connections.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		_ = s.conn.Close()
	}
}
