package throttle

import "sync"

// Store remembers the last accepted time of every sensor seen since start.
// Sensors retransmit the same reading several times in a burst; Store lets
// one of them through per interval.
type Store struct {
	mu   sync.Mutex
	last map[string]int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{last: make(map[string]int64)}
}

// ShouldAccept decides whether an event for key at the given Unix time passes.
// An interval of 0 accepts everything. Accepting records at as the new baseline.
func (s *Store) ShouldAccept(key string, at, interval int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, seen := s.last[key]; seen && interval != 0 && at < t+interval {
		return false
	}
	s.last[key] = at
	return true
}

// Last returns the last accepted time for key
func (s *Store) Last(key string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[key]
	return t, ok
}

// Len returns the number of tracked sensors
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}
