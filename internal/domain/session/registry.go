package session

import (
	"errors"
	"sync"

	"github.com/Relay-Gate/Relaygate/internal/domain/transport"
)

// ErrSessionNotFound is returned when no live transport is registered
// under the given session ID.
var ErrSessionNotFound = errors.New("session not found")

// Registry is the process-wide map from session ID to its live transport.
// It is the only resource shared across concurrent session handlers and is
// safe for concurrent lookups, insertions, and removals.
//
// Entries self-remove on close: a transport deregisters itself before
// firing its close callback, so a lookup never returns a transport whose
// close has already been observed by the caller.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]transport.Transport
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[string]transport.Transport),
	}
}

// Add registers a transport under its session ID.
func (r *Registry) Add(id string, t transport.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[id] = t
}

// Get returns the transport registered under id.
// Returns ErrSessionNotFound if no live transport is registered.
func (r *Registry) Get(id string) (transport.Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return t, nil
}

// Remove deregisters the transport under id. Removing an absent id is a
// no-op so close paths can race safely.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transports, id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transports)
}

// CloseAll closes every registered transport. Used during server shutdown.
// Each Close triggers the transport's own deregistration.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	open := make([]transport.Transport, 0, len(r.transports))
	for _, t := range r.transports {
		open = append(open, t)
	}
	r.mu.RUnlock()

	for _, t := range open {
		_ = t.Close()
	}
}
