// Package cache provides a thread-safe in-memory store combining LRU
// capacity eviction with per-entry TTL expiry, plus tag-indexed
// invalidation: entries may be stored under dependency tags and purged
// together when a tag is invalidated. The tag index is pruned
// automatically whenever an entry leaves the cache, so it cannot grow
// past the entries it describes.
package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats holds aggregate cache counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
	Size        int   `json:"size"`
	MaxSize     int   `json:"max_size"`
	TaggedKeys  int   `json:"tagged_keys"`
}

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
	hits      int64
}

func (e *entry[V]) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) >= e.ttl
}

// Store is a string-keyed TTL+LRU cache. All operations, including tag
// index maintenance, are serialized under one mutex — correctness over
// throughput; this cache is not a hot path at extreme QPS.
type Store[V any] struct {
	mu sync.Mutex

	lru     *lru.Cache[string, *entry[V]]
	maxSize int

	// Tag index: tag → keys stored under it, and the reverse so a
	// departing entry can be unlinked in O(tags).
	keysByTag map[string]map[string]struct{}
	tagsByKey map[string][]string

	// The lru fires its evict callback for explicit Remove/Purge too;
	// explicit counts as an eviction only when this flag is clear.
	removing bool

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	now func() time.Time // test seam
}

// New creates a Store holding at most maxSize entries.
func New[V any](maxSize int) (*Store[V], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache: max size must be positive, got %d", maxSize)
	}

	s := &Store[V]{
		maxSize:   maxSize,
		keysByTag: make(map[string]map[string]struct{}),
		tagsByKey: make(map[string][]string),
		now:       time.Now,
	}

	// The callback runs synchronously under s.mu (every lru call below
	// happens with the lock held), so it may touch the tag maps
	// directly but must never call back into the lru.
	l, err := lru.NewWithEvict[string, *entry[V]](maxSize, func(key string, _ *entry[V]) {
		s.unlink(key)
		if !s.removing {
			s.evictions++
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cache: init lru: %w", err)
	}
	s.lru = l
	return s, nil
}

// Get returns the live value for key. Expired entries are removed as a
// side effect of the read and reported as misses. A hit refreshes the
// key's recency and increments its hit counter.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	e, ok := s.lru.Get(key)
	if !ok {
		s.misses++
		return zero, false
	}
	if e.expired(s.now()) {
		s.remove(key)
		s.expirations++
		s.misses++
		return zero, false
	}

	e.hits++
	s.hits++
	return e.value, true
}

// Set inserts or replaces key with the given TTL (0 disables expiry).
// Inserting into a full cache evicts the least-recently-used entry
// first. No tags are attached; any tags from a previous entry under the
// same key are dropped.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	s.SetTagged(key, value, ttl, nil)
}

// SetTagged is Set with dependency tags: a later InvalidateTag on any
// of them purges this entry.
func (s *Store[V]) SetTagged(key string, value V, ttl time.Duration, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replacing a key drops its old tag links; lru.Add does not fire
	// the evict callback for a same-key replacement.
	s.unlink(key)

	s.lru.Add(key, &entry[V]{value: value, createdAt: s.now(), ttl: ttl})

	if len(tags) > 0 {
		s.tagsByKey[key] = append([]string(nil), tags...)
		for _, tag := range tags {
			set := s.keysByTag[tag]
			if set == nil {
				set = make(map[string]struct{})
				s.keysByTag[tag] = set
			}
			set[key] = struct{}{}
		}
	}
}

// Delete removes key. Returns true iff it was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(key)
}

// InvalidateTag purges every entry stored under tag and returns the
// purged keys.
func (s *Store[V]) InvalidateTag(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.keysByTag[tag]
	if len(set) == 0 {
		return nil
	}
	// Snapshot first: removal mutates the set we are reading.
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	for _, key := range keys {
		s.remove(key)
	}
	return keys
}

// Clear removes all entries and tag links. Counters are preserved.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removing = true
	s.lru.Purge()
	s.removing = false
	s.keysByTag = make(map[string]map[string]struct{})
	s.tagsByKey = make(map[string][]string)
}

// Len returns the current entry count.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Hits:        s.hits,
		Misses:      s.misses,
		Evictions:   s.evictions,
		Expirations: s.expirations,
		Size:        s.lru.Len(),
		MaxSize:     s.maxSize,
		TaggedKeys:  len(s.tagsByKey),
	}
}

// remove deletes key without counting a capacity eviction. Callers must
// hold s.mu.
func (s *Store[V]) remove(key string) bool {
	s.removing = true
	removed := s.lru.Remove(key)
	s.removing = false
	return removed
}

// unlink removes key from the tag index. Callers must hold s.mu.
func (s *Store[V]) unlink(key string) {
	tags, ok := s.tagsByKey[key]
	if !ok {
		return
	}
	delete(s.tagsByKey, key)
	for _, tag := range tags {
		set := s.keysByTag[tag]
		delete(set, key)
		if len(set) == 0 {
			delete(s.keysByTag, tag)
		}
	}
}
