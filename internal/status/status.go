// Package status persists per-parameter lesson indices so a training run
// can resume its curriculum position after a process restart. Backends are
// interchangeable: in-memory (tests, throwaway runs), JSON file, Redis, or
// Postgres.
package status

import "sync"

// Store is the persistent key/value interface the curriculum manager uses
// for lesson indices. Keys are independent per parameter; no cross-key
// transaction is required.
type Store interface {
	// GetLessonNum returns the stored lesson index for a parameter, with
	// found=false when the parameter has never been written.
	GetLessonNum(parameter string) (lessonNum int, found bool, err error)
	// SetLessonNum stores the lesson index for a parameter.
	SetLessonNum(parameter string, lessonNum int) error
}

// MemoryStore is an in-memory Store. State does not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	lessons map[string]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lessons: make(map[string]int)}
}

func (s *MemoryStore) GetLessonNum(parameter string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	num, ok := s.lessons[parameter]
	return num, ok, nil
}

func (s *MemoryStore) SetLessonNum(parameter string, lessonNum int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lessons[parameter] = lessonNum
	return nil
}
