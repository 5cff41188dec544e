package utils

import (
	"sync"
)

// Set of comparable keys that is safe for use from multiple goroutines.
type ConcurrentSet[K comparable] struct {
	_map map[K]struct{}
	mu   sync.Mutex
}

// Create a new concurrent set.
func NewConcurrentSet[K comparable]() *ConcurrentSet[K] {
	return &ConcurrentSet[K]{_map: make(map[K]struct{})}
}

// Adds a key to the set.
// Returns true if the key was already present.
func (s *ConcurrentSet[K]) Add(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s._map[key]
	if !ok {
		s._map[key] = struct{}{}
	}
	return ok
}

// Deletes a key from the set.
// Returns true if the key was present.
func (s *ConcurrentSet[K]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s._map[key]
	delete(s._map, key)
	return ok
}

// Returns true if the set contains the key
func (s *ConcurrentSet[K]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s._map[key]
	return ok
}

// Clears the set.
func (s *ConcurrentSet[K]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s._map)
}

// Returns a copy of the keys in no particular order.
func (s *ConcurrentSet[K]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]K, 0, len(s._map))
	for k := range s._map {
		keys = append(keys, k)
	}
	return keys
}

// Returns the amount of items currently in the set.
func (s *ConcurrentSet[K]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s._map)
}

func (s *ConcurrentSet[K]) IsEmpty() bool {
	return s.Size() == 0
}
