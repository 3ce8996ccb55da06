package hierarchy

import (
	"fmt"
	"time"
)

// Resolver computes the effective (inheritance-flattened) data of a
// context by walking its ancestor chain root-first and deep-merging
// each level over the ones above it.
type Resolver struct {
	store Store
	guard *Guard // nil disables read-path ancestor materialization
	now   func() time.Time
}

// NewResolver creates a Resolver over the given store. A non-nil guard
// lets resolution materialize missing intermediate ancestors instead of
// treating them as empty.
func NewResolver(store Store, guard *Guard) *Resolver {
	return &Resolver{store: store, guard: guard, now: time.Now}
}

// Resolve returns the resolved context at (level, contextID) for owner.
//
// With includeInherited=false only the record's own data is returned —
// the cheap, intentionally non-inheriting read. Otherwise the full
// chain global→…→level is merged with child-wins precedence.
//
// The requested record must exist, except at the global level: an
// absent global context resolves to an empty map (process bootstrap
// case). Missing intermediate ancestors are materialized through the
// guard when one is configured, and merged as empty maps when not.
func (r *Resolver) Resolve(level Level, contextID, ownerID string, includeInherited bool) (*ResolvedContext, error) {
	if level == LevelGlobal {
		contextID = GlobalContextID
	}

	own, err := r.store.Fetch(level, contextID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: fetch %s %q: %w", level, contextID, err)
	}
	if own == nil && level != LevelGlobal {
		return nil, &NotFoundError{Level: level, ContextID: contextID}
	}

	if !includeInherited {
		return r.resolveOwn(level, contextID, ownerID, own), nil
	}

	ids, err := r.ancestorIDs(level, contextID, ownerID, own)
	if err != nil {
		return nil, err
	}

	res := &ResolvedContext{
		Level:      level,
		ContextID:  contextID,
		OwnerID:    ownerID,
		ResolvedAt: r.now(),
	}

	var chain []map[string]any
	for _, lvl := range level.Chain() {
		id, known := ids[lvl]
		if !known {
			// Parent link was untraceable at this tier; nothing to
			// merge and nothing to depend on.
			continue
		}

		rec := own
		if lvl != level {
			rec, err = r.fetchOrMaterialize(lvl, id, ownerID, ids)
			if err != nil {
				return nil, err
			}
		}

		if rec == nil {
			// Absent ancestor merges as empty but still pins the path:
			// version 0 makes a later creation flip the signature.
			res.ResolutionPath = append(res.ResolutionPath, PathEntry{Level: lvl, ContextID: id})
			continue
		}

		chain = append(chain, rec.Data)
		res.ResolutionPath = append(res.ResolutionPath, PathEntry{
			Level:     lvl,
			ContextID: id,
			Version:   rec.Version,
		})
	}

	res.MergedData = MergeChain(chain)
	return res, nil
}

// resolveOwn builds the non-inheriting result: the record's own data
// alone, with a single-entry resolution path.
func (r *Resolver) resolveOwn(level Level, contextID, ownerID string, own *ContextRecord) *ResolvedContext {
	res := &ResolvedContext{
		Level:      level,
		ContextID:  contextID,
		OwnerID:    ownerID,
		MergedData: map[string]any{},
		ResolvedAt: r.now(),
	}
	entry := PathEntry{Level: level, ContextID: contextID}
	if own != nil {
		entry.Version = own.Version
		res.MergedData = DeepMerge(nil, own.Data)
	}
	res.ResolutionPath = []PathEntry{entry}
	return res
}

// ancestorIDs maps each level of the chain to its context id, walking
// parent links bottom-up from the requested record. The walk stops
// early when a parent link is missing; the global tier is always
// present (fixed singleton id).
func (r *Resolver) ancestorIDs(level Level, contextID, ownerID string, own *ContextRecord) (map[Level]string, error) {
	ids := map[Level]string{
		LevelGlobal: GlobalContextID,
		level:       contextID,
	}

	cur, curID := level, contextID
	parentID := ""
	if own != nil {
		parentID = own.ParentID
	}

	for cur != LevelGlobal {
		parent, _ := cur.Parent()
		if parent == LevelGlobal {
			break
		}

		if parentID == "" {
			var err error
			parentID, err = r.store.FetchParentID(cur, curID, ownerID)
			if err != nil {
				return nil, fmt.Errorf("hierarchy: parent of %s %q: %w", cur, curID, err)
			}
		}
		if parentID == "" && r.guard != nil {
			var err error
			parentID, err = r.guard.ParentHint(cur, curID, ownerID)
			if err != nil {
				return nil, err
			}
		}
		if parentID == "" {
			break
		}

		ids[parent] = parentID
		cur, curID = parent, parentID
		parentID = "" // look up the next link from the store
	}

	return ids, nil
}

// fetchOrMaterialize fetches an ancestor record, asking the guard to
// create a missing one when materialization is enabled. A record that
// stays absent is returned as nil, never as an error — ancestors merge
// as empty maps.
func (r *Resolver) fetchOrMaterialize(lvl Level, id, ownerID string, ids map[Level]string) (*ContextRecord, error) {
	rec, err := r.store.Fetch(lvl, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: fetch %s %q: %w", lvl, id, err)
	}
	if rec != nil || r.guard == nil || lvl == LevelGlobal {
		return rec, nil
	}

	parentID := ""
	if parent, ok := lvl.Parent(); ok {
		parentID = ids[parent]
	}
	if parentID == "" {
		return nil, nil // cannot satisfy the parent invariant; merge as empty
	}

	if _, err := r.guard.Materialize(lvl, id, parentID, ownerID); err != nil {
		return nil, fmt.Errorf("hierarchy: materialize %s %q: %w", lvl, id, err)
	}

	rec, err = r.store.Fetch(lvl, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: refetch %s %q: %w", lvl, id, err)
	}
	return rec, nil
}
