package hierarchy

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmesh/taskmesh/internal/cache"
)

// ResolveResult is the structured outcome of a resolve operation.
// Errors cross this boundary as messages, never as panics or raw
// error values.
type ResolveResult struct {
	Success        bool           `json:"success"`
	Level          string         `json:"level,omitempty"`
	ContextID      string         `json:"context_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	ResolutionPath []string       `json:"resolution_path,omitempty"`
	ResolvedAt     time.Time      `json:"resolved_at,omitzero"`
	Error          string         `json:"error,omitempty"`
}

// WriteResult is the structured outcome of a write operation.
type WriteResult struct {
	Success          bool            `json:"success"`
	ContextID        string          `json:"context_id,omitempty"`
	Version          int64           `json:"version,omitempty"`
	CreatedAncestors map[string]bool `json:"created_ancestors,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// DeleteResult is the structured outcome of a delete operation.
type DeleteResult struct {
	Success bool   `json:"success"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// Service is the facade the MCP layer talks to. It validates
// parameters, runs bootstrap and persistence on writes, resolves
// through the cache manager on reads, and triggers invalidation after
// every successful mutation.
type Service struct {
	store      Store
	manager    *Manager
	propagator *Propagator
	guard      *Guard
	links      AssociationRecorder
	log        *slog.Logger
}

// NewService wires the facade from its collaborators.
func NewService(store Store, manager *Manager, propagator *Propagator, guard *Guard, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:      store,
		manager:    manager,
		propagator: propagator,
		guard:      guard,
		log:        log,
	}
}

// SetAssociationRecorder makes the service record branch→project and
// task→branch links after each successful write that names a parent.
// Optional; without it writes simply don't feed the association tables.
func (s *Service) SetAssociationRecorder(r AssociationRecorder) {
	s.links = r
}

// ResolveContext returns the effective context at (level, contextID)
// for an owner, inheritance-merged unless includeInherited is false.
func (s *Service) ResolveContext(level, contextID, ownerID string, includeInherited, forceRefresh bool) ResolveResult {
	lvl, err := ParseLevel(level)
	if err != nil {
		return ResolveResult{Error: err.Error()}
	}
	if lvl == LevelGlobal && contextID == "" {
		contextID = GlobalContextID
	}
	if err := requireIDs(contextID, ownerID); err != nil {
		return ResolveResult{Error: err.Error()}
	}

	res, err := s.manager.GetOrResolve(lvl, contextID, ownerID, includeInherited, forceRefresh)
	if err != nil {
		return ResolveResult{Level: level, ContextID: contextID, Error: err.Error()}
	}

	return ResolveResult{
		Success:        true,
		Level:          string(res.Level),
		ContextID:      res.ContextID,
		Data:           res.MergedData,
		ResolutionPath: res.Levels(),
		ResolvedAt:     res.ResolvedAt,
	}
}

// WriteContext creates or updates the context at (level, contextID),
// materializing missing ancestors first when autoCreateParents is set.
// A successful write always reports success even when the follow-up
// cache invalidation degrades — stale reads are TTL-bounded, failed
// writes are not acceptable.
func (s *Service) WriteContext(level, contextID, ownerID string, data map[string]any, autoCreateParents bool) WriteResult {
	lvl, err := ParseLevel(level)
	if err != nil {
		return WriteResult{Error: err.Error()}
	}
	if lvl == LevelGlobal {
		contextID = GlobalContextID
	}
	if err := requireIDs(contextID, ownerID); err != nil {
		return WriteResult{Error: err.Error()}
	}

	normalized := NormalizeData(data)

	var parentID string
	created := map[Level]bool{}
	if autoCreateParents {
		parentID, created, err = s.guard.EnsureAncestors(lvl, contextID, ownerID, normalized)
	} else {
		parentID, err = s.guard.ResolveParent(lvl, contextID, ownerID, normalized)
	}
	if err != nil {
		return WriteResult{ContextID: contextID, Error: err.Error()}
	}

	rec, err := s.store.Upsert(&ContextRecord{
		Level:     lvl,
		ContextID: contextID,
		OwnerID:   ownerID,
		ParentID:  parentID,
		Data:      normalized,
		UpdatedAt: time.Now().UTC(),
	}, false)
	if err != nil {
		return WriteResult{ContextID: contextID, Error: err.Error()}
	}

	s.propagator.OnWrite(lvl, contextID, ownerID)
	s.recordAssociation(lvl, contextID, parentID, ownerID)

	createdOut := make(map[string]bool, len(created))
	for l, ok := range created {
		createdOut[string(l)] = ok
	}

	return WriteResult{
		Success:          true,
		ContextID:        rec.ContextID,
		Version:          rec.Version,
		CreatedAncestors: createdOut,
	}
}

// DeleteContext removes the record at (level, contextID). Invalidation
// cascades to cached descendants; descendant records themselves are
// untouched.
func (s *Service) DeleteContext(level, contextID, ownerID string) DeleteResult {
	lvl, err := ParseLevel(level)
	if err != nil {
		return DeleteResult{Error: err.Error()}
	}
	if lvl == LevelGlobal {
		contextID = GlobalContextID
	}
	if err := requireIDs(contextID, ownerID); err != nil {
		return DeleteResult{Error: err.Error()}
	}

	deleted, err := s.store.Delete(lvl, contextID, ownerID)
	if err != nil {
		return DeleteResult{Error: err.Error()}
	}

	s.propagator.OnWrite(lvl, contextID, ownerID)

	return DeleteResult{Success: true, Deleted: deleted}
}

// recordAssociation persists the parent link a successful write
// established. Best-effort: a failed link is logged and never fails
// the write.
func (s *Service) recordAssociation(level Level, contextID, parentID, ownerID string) {
	if s.links == nil || parentID == "" {
		return
	}
	var err error
	switch level {
	case LevelBranch:
		err = s.links.LinkBranch(contextID, parentID, ownerID)
	case LevelTask:
		err = s.links.LinkTask(contextID, parentID, ownerID)
	default:
		return
	}
	if err != nil {
		s.log.Warn("recording parent association failed",
			"level", level, "context_id", contextID, "error", err)
	}
}

// CacheStats exposes cache counters for the stats tool.
func (s *Service) CacheStats() cache.Stats {
	return s.manager.Stats()
}

func requireIDs(contextID, ownerID string) error {
	if contextID == "" {
		return fmt.Errorf("hierarchy: context_id is required")
	}
	if ownerID == "" {
		return fmt.Errorf("hierarchy: owner_id is required")
	}
	return nil
}
