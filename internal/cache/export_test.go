package cache

import "time"

// SetClock replaces the store's time source for tests.
func (s *Store[V]) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
