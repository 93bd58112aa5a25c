package enrich

import "sync"

// keySet is a concurrent set of entry keys with claim semantics.
type keySet struct {
	mu sync.RWMutex
	m  map[string]struct{}
}

func newKeySet() *keySet {
	return &keySet{m: make(map[string]struct{})}
}

// claim adds key and reports whether it was absent.
func (s *keySet) claim(key string) bool {
	// First try with read lock.
	s.mu.RLock()
	_, held := s.m[key]
	s.mu.RUnlock()
	if held {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held = s.m[key]; held {
		return false
	}
	s.m[key] = struct{}{}
	return true
}

func (s *keySet) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *keySet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
