package hierarchy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmesh/taskmesh/internal/cache"
)

// cachedResolution pairs a resolved context with the dependency
// signature it was computed under.
type cachedResolution struct {
	res *ResolvedContext
	sig string
}

// Manager serves resolutions through the TTL/LRU cache. Entries are
// keyed per owner/level/id/inherit-mode and tagged with a dependency
// token per record on their resolution path, so an ancestor write can
// purge every dependent entry eagerly. A cached hit is revalidated by
// recomputing the dependency signature from current record versions —
// far cheaper than a re-merge, and it catches ancestor changes the
// eager purge may have missed (e.g. after a process restart of a
// writer that never resolved).
type Manager struct {
	store    Store
	resolver *Resolver
	cache    *cache.Store[cachedResolution]
	ttl      time.Duration
	log      *slog.Logger
}

// NewManager creates a Manager caching resolutions for ttl.
func NewManager(store Store, resolver *Resolver, c *cache.Store[cachedResolution], ttl time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, resolver: resolver, cache: c, ttl: ttl, log: log}
}

// NewResolutionCache creates the cache store a Manager runs on.
func NewResolutionCache(maxSize int) (*cache.Store[cachedResolution], error) {
	return cache.New[cachedResolution](maxSize)
}

// GetOrResolve returns the resolved context, serving from cache when a
// live entry's dependency signature still matches the store. With
// forceRefresh both the TTL and the signature check are bypassed and
// the context is re-resolved unconditionally.
func (m *Manager) GetOrResolve(level Level, contextID, ownerID string, includeInherited, forceRefresh bool) (*ResolvedContext, error) {
	if level == LevelGlobal {
		contextID = GlobalContextID
	}
	key := cacheKey(level, contextID, ownerID, includeInherited)

	if !forceRefresh {
		if cached, ok := m.cache.Get(key); ok {
			sig, err := m.currentSignature(cached.res.ResolutionPath, ownerID)
			if err != nil {
				// Revalidation trouble is never the reader's problem:
				// log, drop the entry, fall through to a full resolve.
				m.log.Warn("cache revalidation failed, treating as miss",
					"key", key, "error", err)
				m.cache.Delete(key)
			} else if sig == cached.sig {
				return cached.res, nil
			} else {
				m.cache.Delete(key)
			}
		}
	}

	res, err := m.resolver.Resolve(level, contextID, ownerID, includeInherited)
	if err != nil {
		return nil, err
	}

	sig := signature(res.ResolutionPath)
	tags := make([]string, len(res.ResolutionPath))
	for i, p := range res.ResolutionPath {
		tags[i] = depTag(p.Level, p.ContextID, ownerID)
	}
	m.cache.SetTagged(key, cachedResolution{res: res, sig: sig}, m.ttl, tags)

	return res, nil
}

// Stats exposes the underlying cache counters.
func (m *Manager) Stats() cache.Stats {
	return m.cache.Stats()
}

// currentSignature recomputes the dependency signature of a resolution
// path against the records' current versions. Records that disappeared
// contribute version 0, mirroring how an absent ancestor is pinned at
// resolve time.
func (m *Manager) currentSignature(path []PathEntry, ownerID string) (string, error) {
	current := make([]PathEntry, len(path))
	for i, p := range path {
		rec, err := m.store.Fetch(p.Level, p.ContextID, ownerID)
		if err != nil {
			return "", fmt.Errorf("hierarchy: revalidate %s %q: %w", p.Level, p.ContextID, err)
		}
		current[i] = PathEntry{Level: p.Level, ContextID: p.ContextID}
		if rec != nil {
			current[i].Version = rec.Version
		}
	}
	return signature(current), nil
}

// signature hashes the (level, id, version) tuples of a resolution path
// in visit order. Any version change anywhere on the path changes the
// signature.
func signature(path []PathEntry) string {
	h := sha256.New()
	for _, p := range path {
		fmt.Fprintf(h, "%s:%s:%d|", p.Level, p.ContextID, p.Version)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// cacheKey builds the cache key for one resolution variant.
func cacheKey(level Level, contextID, ownerID string, includeInherited bool) string {
	return fmt.Sprintf("%s:%s:%s:%t", ownerID, level, contextID, includeInherited)
}

// depTag builds the reverse-index token for one record; every cache
// entry whose resolution path visited the record carries this tag.
func depTag(level Level, contextID, ownerID string) string {
	return fmt.Sprintf("dep:%s:%s:%s", ownerID, level, contextID)
}
