package loadbalancer

import (
	"math/rand"
	"sync"
)

// lockedSource wraps a math/rand.Source with a mutex so that one seeded
// source can be shared safely across concurrently selecting goroutines.
// Select wraps it in a new *rand.Rand per call but never creates a new
// source.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func newLockedSource(seed int64) *lockedSource {
	return &lockedSource{src: rand.NewSource(seed)}
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}
