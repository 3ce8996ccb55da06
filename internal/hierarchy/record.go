package hierarchy

import "time"

// ExtensionKey is the sub-map inside a context's data that carries
// caller-defined extension fields. Reserved (underscore-prefixed) keys
// written at the top level are relocated here on write instead of being
// smuggled into semantic fields.
const ExtensionKey = "_ext"

// ContextRecord is the raw, persisted form of a context at one level.
// Records are partitioned by OwnerID: no resolution, cache lookup, or
// invalidation crosses an owner boundary.
type ContextRecord struct {
	Level     Level          `json:"level"`
	ContextID string         `json:"context_id"`
	OwnerID   string         `json:"owner_id"`
	ParentID  string         `json:"parent_id,omitempty"` // empty for global
	Data      map[string]any `json:"data"`
	Version   int64          `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ResolvedContext is the derived, inheritance-flattened view of a
// context. It is never persisted — always recomputed from records or
// served from cache.
type ResolvedContext struct {
	Level      Level          `json:"level"`
	ContextID  string         `json:"context_id"`
	OwnerID    string         `json:"owner_id"`
	MergedData map[string]any `json:"merged_data"`
	// ResolutionPath lists the records actually visited, root first.
	// It is the input to the dependency signature: a version change on
	// any entry invalidates cached resolutions built from it.
	ResolutionPath []PathEntry `json:"resolution_path"`
	ResolvedAt     time.Time   `json:"resolved_at"`
}

// PathEntry is one visited record on a resolution path.
type PathEntry struct {
	Level     Level  `json:"level"`
	ContextID string `json:"context_id"`
	Version   int64  `json:"version"`
}

// Levels returns just the level names of the path, in visit order.
func (r *ResolvedContext) Levels() []string {
	out := make([]string, len(r.ResolutionPath))
	for i, p := range r.ResolutionPath {
		out[i] = string(p.Level)
	}
	return out
}

// NormalizeData returns a copy of data with reserved (underscore-
// prefixed) top-level keys relocated under ExtensionKey. The "_ext"
// key itself is merged, not nested. A nil input yields an empty map.
func NormalizeData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	var ext map[string]any

	ensureExt := func() map[string]any {
		if ext == nil {
			ext = make(map[string]any)
		}
		return ext
	}

	for k, v := range data {
		switch {
		case k == ExtensionKey:
			if m, ok := v.(map[string]any); ok {
				for ek, ev := range m {
					ensureExt()[ek] = ev
				}
			} else {
				ensureExt()["value"] = v
			}
		case len(k) > 0 && k[0] == '_':
			ensureExt()[k[1:]] = v
		default:
			out[k] = v
		}
	}

	if ext != nil {
		out[ExtensionKey] = ext
	}
	return out
}
