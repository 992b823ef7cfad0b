package repositories

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	key        string
	timestamps []time.Time
}

// MemoryWindowStore keeps rate limit windows in process memory. When maxKeys
// is positive the least recently written key is evicted once the bound is hit.
type MemoryWindowStore struct {
	mu      sync.Mutex
	maxKeys int
	entries map[string]*list.Element
	order   *list.List // front = most recently written
}

func NewMemoryWindowStore(maxKeys int) *MemoryWindowStore {
	return &MemoryWindowStore{
		maxKeys: maxKeys,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns a copy of the timestamps for key, or nil
func (s *MemoryWindowStore) Get(_ context.Context, key string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	ts := el.Value.(*windowEntry).timestamps
	out := make([]time.Time, len(ts))
	copy(out, ts)
	return out, nil
}

// Set replaces the timestamps for key. An empty slice removes the key.
func (s *MemoryWindowStore) Set(_ context.Context, key string, timestamps []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(timestamps) == 0 {
		s.removeLocked(key)
		return nil
	}

	stored := make([]time.Time, len(timestamps))
	copy(stored, timestamps)

	if el, ok := s.entries[key]; ok {
		el.Value.(*windowEntry).timestamps = stored
		s.order.MoveToFront(el)
		return nil
	}

	s.entries[key] = s.order.PushFront(&windowEntry{key: key, timestamps: stored})
	for s.maxKeys > 0 && s.order.Len() > s.maxKeys {
		oldest := s.order.Back()
		s.removeLocked(oldest.Value.(*windowEntry).key)
	}
	return nil
}

func (s *MemoryWindowStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
	return nil
}

// Range calls fn for every key present when Range started. fn runs without
// the store lock held, so it may call back into the store.
func (s *MemoryWindowStore) Range(ctx context.Context, fn func(key string) bool) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(k) {
			return nil
		}
	}
	return nil
}

// Len reports the number of tracked keys
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryWindowStore) removeLocked(key string) {
	if el, ok := s.entries[key]; ok {
		s.order.Remove(el)
		delete(s.entries, key)
	}
}
