// Package memstore holds process-lifetime keyed stores behind the repository ports.
package memstore

import "sync"

// Store is a string-keyed map guarded by a single RWMutex.
type Store[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

func NewStore[V any]() *Store[V] {
	return &Store[V]{items: make(map[string]V)}
}

func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *Store[V]) Put(key string, v V) {
	s.mu.Lock()
	s.items[key] = v
	s.mu.Unlock()
}

func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	delete(s.items, key)
	return ok
}

func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Range calls fn for each item under the read lock. fn must not call back into the store.
func (s *Store[V]) Range(fn func(key string, v V) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.items {
		if !fn(k, v) {
			return
		}
	}
}

// DeleteFunc removes every item for which fn returns true and reports how many.
func (s *Store[V]) DeleteFunc(fn func(key string, v V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.items {
		if fn(k, v) {
			delete(s.items, k)
			n++
		}
	}
	return n
}
