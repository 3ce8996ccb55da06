package hierarchy

import (
	"fmt"
	"log/slog"

	"github.com/taskmesh/taskmesh/internal/cache"
)

// Propagator purges cache entries made stale by a write. It removes the
// written context's own entries (both inherit variants) and eagerly
// fans out to every cached descendant resolution via the dependency
// tags registered at resolve time — no lazy staleness window, no full
// cache scan.
//
// Invalidation runs synchronously on the write path but can never fail
// it: any panic out of the cache layer is logged and swallowed, and
// readers degrade to signature-checked (at worst TTL-bounded) entries.
type Propagator struct {
	cache *cache.Store[cachedResolution]
	log   *slog.Logger
}

// NewPropagator creates a Propagator over the manager's cache store.
func NewPropagator(c *cache.Store[cachedResolution], log *slog.Logger) *Propagator {
	if log == nil {
		log = slog.Default()
	}
	return &Propagator{cache: c, log: log}
}

// OnWrite purges everything cached for (level, contextID) and all known
// dependents. Call it after every successful upsert or delete.
func (p *Propagator) OnWrite(level Level, contextID, ownerID string) {
	defer func() {
		if r := recover(); r != nil {
			err := &CacheInconsistencyError{
				Key:    cacheKey(level, contextID, ownerID, true),
				Reason: fmt.Sprint(r),
			}
			p.log.Warn("cache invalidation failed; stale entries expire by TTL", "error", err)
		}
	}()

	if level == LevelGlobal {
		contextID = GlobalContextID
	}

	p.cache.Delete(cacheKey(level, contextID, ownerID, true))
	p.cache.Delete(cacheKey(level, contextID, ownerID, false))

	purged := p.cache.InvalidateTag(depTag(level, contextID, ownerID))
	if len(purged) > 0 {
		p.log.Debug("invalidated dependent cache entries",
			"level", level, "context_id", contextID, "count", len(purged))
	}
}
