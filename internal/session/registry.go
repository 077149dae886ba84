// Package session tracks which live connections belong to which session
// group. A session is a routing key, not a stored entity: it exists from
// the first join until the last leave. Event routing itself rides the
// bus; the registry feeds metrics and introspection.
package session

import (
	"sort"
	"sync"
	"time"
)

type member struct {
	joinedAt time.Time
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]member
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[string]member)}
}

// Join registers a connection under a session, creating the session
// implicitly on first join.
func (r *Registry) Join(sessionID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.sessions[sessionID]
	if !ok {
		conns = make(map[string]member)
		r.sessions[sessionID] = conns
	}
	conns[connID] = member{joinedAt: time.Now().UTC()}
}

// Leave removes a connection and reports whether the session emptied
// out with it.
func (r *Registry) Leave(sessionID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.sessions, sessionID)
		return true
	}
	return false
}

func (r *Registry) MembersOf(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.sessions[sessionID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, conns := range r.sessions {
		total += len(conns)
	}
	return total
}
