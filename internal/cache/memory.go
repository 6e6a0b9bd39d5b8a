package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type memoryItem struct {
	key       string
	entry     Entry
	expiresAt time.Time
	tags      []string
	order     *list.Element
}

type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Keys      int
}

// MemoryStore is a process-local Store bounded by capacity. When full it first drops
// expired entries and then the oldest insertion.
type MemoryStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	capacity int
	items    map[string]*memoryItem
	byTag    map[string]map[string]struct{}
	gens     map[string]uint64
	order    *list.List
	stats    Stats
}

func NewMemoryStore(clk clock.Clock, capacity int) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{
		clock:    clk,
		capacity: capacity,
		items:    make(map[string]*memoryItem),
		byTag:    make(map[string]map[string]struct{}),
		gens:     make(map[string]uint64),
		order:    list.New(),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		s.stats.Misses++
		return Entry{}, false, nil
	}
	if !s.clock.Now().Before(item.expiresAt) {
		s.removeLocked(item)
		s.stats.Misses++
		s.stats.Evictions++
		return Entry{}, false, nil
	}
	s.stats.Hits++
	return item.entry, true, nil
}

func (s *MemoryStore) Generation(_ context.Context, tags ...string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationLocked(tags), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry Entry, ttl time.Duration, gen uint64, tags ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generationLocked(tags) != gen {
		return ErrStale
	}

	if existing, ok := s.items[key]; ok {
		s.removeLocked(existing)
	}
	if len(s.items) >= s.capacity {
		s.purgeExpiredLocked()
	}
	for len(s.items) >= s.capacity {
		oldest := s.order.Front()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest.Value.(*memoryItem))
		s.stats.Evictions++
	}

	item := &memoryItem{
		key:       key,
		entry:     entry,
		expiresAt: s.clock.Now().Add(ttl),
		tags:      tags,
	}
	item.order = s.order.PushBack(item)
	s.items[key] = item
	for _, tag := range tags {
		keys, ok := s.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, tags ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tag := range tags {
		s.gens[tag]++
		for key := range s.byTag[tag] {
			if item, ok := s.items[key]; ok {
				s.removeLocked(item)
			}
		}
		delete(s.byTag, tag)
	}
	return nil
}

func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Keys = len(s.items)
	return stats
}

func (s *MemoryStore) generationLocked(tags []string) uint64 {
	var gen uint64
	for _, tag := range tags {
		gen += s.gens[tag]
	}
	return gen
}

func (s *MemoryStore) purgeExpiredLocked() {
	now := s.clock.Now()
	for _, item := range s.items {
		if !now.Before(item.expiresAt) {
			s.removeLocked(item)
			s.stats.Evictions++
		}
	}
}

func (s *MemoryStore) removeLocked(item *memoryItem) {
	delete(s.items, item.key)
	s.order.Remove(item.order)
	for _, tag := range item.tags {
		if keys, ok := s.byTag[tag]; ok {
			delete(keys, item.key)
			if len(keys) == 0 {
				delete(s.byTag, tag)
			}
		}
	}
}
