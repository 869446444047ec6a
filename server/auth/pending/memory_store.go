package pending

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. Pending state is process-local: a
// restart aborts in-flight authorizations.
type MemoryStore[T any] struct {
	mu        sync.RWMutex
	byID      map[string]Pending[T]
	bySession map[string]map[string]struct{}
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{
		byID:      make(map[string]Pending[T]),
		bySession: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore[T]) Put(_ context.Context, p Pending[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return ErrDuplicate
	}
	s.byID[p.ID] = p
	ids := s.bySession[p.Session]
	if ids == nil {
		ids = make(map[string]struct{})
		s.bySession[p.Session] = ids
	}
	ids[p.ID] = struct{}{}
	return nil
}

func (s *MemoryStore[T]) Get(_ context.Context, id string) (Pending[T], bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok, nil
}

func (s *MemoryStore[T]) Take(_ context.Context, id string) (Pending[T], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		var zero Pending[T]
		return zero, false, nil
	}
	s.removeLocked(p)
	return p, true, nil
}

func (s *MemoryStore[T]) ListSession(_ context.Context, session string) ([]Pending[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pending[T], 0)
	for id := range s.bySession[session] {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *MemoryStore[T]) ClearSession(_ context.Context, session string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0)
	for id := range s.bySession[session] {
		ids = append(ids, id)
		delete(s.byID, id)
	}
	delete(s.bySession, session)
	return ids, nil
}

func (s *MemoryStore[T]) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	var expired []string
	for id, p := range s.byID {
		if p.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()
	removed := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range expired {
		if p, ok := s.byID[id]; ok && p.Expired(now) {
			s.removeLocked(p)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemoryStore[T]) removeLocked(p Pending[T]) {
	delete(s.byID, p.ID)
	if ids := s.bySession[p.Session]; ids != nil {
		delete(ids, p.ID)
		if len(ids) == 0 {
			delete(s.bySession, p.Session)
		}
	}
}
