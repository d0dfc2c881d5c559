package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/pscheid92/livewire/internal/metrics"
)

// Registry maps a user to their live local connection. Connects, disconnects
// and lookups race freely; last registration wins for the same user. The
// registry is owned by one process instance and injected where needed, never
// shared globally.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Register stores the connection for its user, displacing any prior mapping
// on this process. The displaced connection, if any, is returned so the
// caller can tear it down; the registry does not close it.
func (r *Registry) Register(c *Conn) (prev *Conn) {
	r.mu.Lock()
	prev = r.conns[c.UserID]
	r.conns[c.UserID] = c
	r.mu.Unlock()

	if prev == nil {
		metrics.ActiveConnections.Inc()
	}
	return prev
}

// Unregister removes the mapping for userID, but only while connID is still
// the current connection; a stale disconnect for an already-replaced
// connection is a no-op. Unregistering an absent user is a no-op as well.
// Reports whether a mapping was removed.
func (r *Registry) Unregister(userID string, connID uuid.UUID) bool {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current.ID != connID {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, userID)
	r.mu.Unlock()

	metrics.ActiveConnections.Dec()
	return true
}

// Lookup returns the live local connection for userID. A miss does not mean
// the user is globally offline, only that they are not connected here.
func (r *Registry) Lookup(userID string) (*Conn, bool) {
	r.mu.RLock()
	c, ok := r.conns[userID]
	r.mu.RUnlock()
	return c, ok
}

// Count returns the number of registered local connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.conns)
	r.mu.RUnlock()
	return n
}

// Snapshot returns the current connections. The slice is a copy; connections
// may disconnect while the caller iterates, which delivery code tolerates by
// swallowing write errors.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()
	return out
}

// Drain removes and returns every connection, for process shutdown.
func (r *Registry) Drain() []*Conn {
	r.mu.Lock()
	out := make([]*Conn, 0, len(r.conns))
	for userID, c := range r.conns {
		out = append(out, c)
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	metrics.ActiveConnections.Sub(float64(len(out)))
	return out
}
