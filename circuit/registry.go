package circuit

import "sync"

// Registry holds exactly one breaker per origin ID, created lazily on
// first use and kept for the lifetime of the process. Since the origin
// pool is fixed at startup (this proxy does not discover origins
// dynamically), idle eviction would only ever reclaim breakers for
// origins that are still in the configured pool, so the registry does
// not evict entries.
type Registry struct {
	settings Settings
	observer Observer

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry builds a registry applying the same Settings to every
// origin. Transition events are forwarded to observer, which may be nil.
func NewRegistry(settings Settings, observer Observer) *Registry {
	return &Registry{
		settings: settings,
		observer: observer,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for originID, creating it on first access.
func (r *Registry) Get(originID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[originID]; ok {
		return b
	}

	b := newBreaker(originID, r.settings, r.observer)
	r.breakers[originID] = b
	return b
}

// State reports the current state for originID without creating a
// breaker entry for origins that have never been used.
func (r *Registry) State(originID string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[originID]
	if !ok {
		return Closed, false
	}
	return b.State(), true
}

// Snapshot returns the current state of every breaker that has been
// created so far, keyed by origin ID.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.breakers))
	for id, b := range r.breakers {
		out[id] = b.State()
	}
	return out
}
