// Package backend holds the fixed pool of origin servers and their
// mutable availability bits.
package backend

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/originproxy/originproxy/config"
)

// Backend is an upstream origin. It is immutable after construction.
type Backend struct {
	ID     string
	URL    *url.URL
	Weight int
}

// Registry holds the origin set and an availability bit per origin. All
// methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	backends   []*Backend
	byID       map[string]*Backend
	available  map[string]bool
}

// NewRegistry builds a registry from configuration. Every origin starts
// available.
func NewRegistry(backends []config.Backend) (*Registry, error) {
	r := &Registry{
		byID:      make(map[string]*Backend, len(backends)),
		available: make(map[string]bool, len(backends)),
	}

	for _, b := range backends {
		if b.ID == "" {
			return nil, fmt.Errorf("backend: empty id")
		}
		if _, dup := r.byID[b.ID]; dup {
			return nil, fmt.Errorf("backend: duplicate id %q", b.ID)
		}

		u, err := url.Parse(b.URL)
		if err != nil {
			return nil, fmt.Errorf("backend: parse url for %q: %w", b.ID, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("backend: unsupported scheme %q for %q", u.Scheme, b.ID)
		}

		weight := b.Weight
		if weight <= 0 {
			weight = 1
		}

		be := &Backend{ID: b.ID, URL: u, Weight: weight}
		r.backends = append(r.backends, be)
		r.byID[be.ID] = be
		r.available[be.ID] = true
	}

	if len(r.backends) == 0 {
		return nil, fmt.Errorf("backend: registry requires at least one backend")
	}

	return r, nil
}

// All returns every configured backend, regardless of availability.
func (r *Registry) All() []*Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Backend, len(r.backends))
	copy(out, r.backends)
	return out
}

// Get looks up a backend by ID.
func (r *Registry) Get(id string) (*Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	return b, ok
}

// Available returns the subset of backends currently eligible for
// selection, i.e. those whose availability bit is true.
func (r *Registry) Available() []*Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Backend, 0, len(r.backends))
	for _, b := range r.backends {
		if r.available[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

// MarkFailed flips an origin's availability bit to false.
func (r *Registry) MarkFailed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		r.available[id] = false
	}
}

// MarkAvailable flips an origin's availability bit to true.
func (r *Registry) MarkAvailable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		r.available[id] = true
	}
}

// IsAvailable reports the current availability bit for id. Unknown ids
// report false.
func (r *Registry) IsAvailable(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available[id]
}
