package hierarchy

import (
	"errors"
	"fmt"
	"time"
)

// Field aliases accepted when deriving ancestor references from
// caller-supplied data. The first entry of each list is the canonical
// name reported in errors.
var (
	projectIDAliases = []string{"project_id", "parent_project_id"}
	branchIDAliases  = []string{"branch_id", "parent_branch_id", "git_branch_id"}
)

// Guard materializes missing ancestor contexts so a write at any level
// lands on a complete chain. All creation is idempotent: a concurrent
// bootstrap racing the same ancestor surfaces as *ConflictError from
// the store and is treated as success.
type Guard struct {
	store Store
	assoc AssociationSource // nil disables association-based derivation
}

// NewGuard creates a Guard. assoc may be nil; then ancestor references
// must be present in the supplied data.
func NewGuard(store Store, assoc AssociationSource) *Guard {
	return &Guard{store: store, assoc: assoc}
}

// EnsureAncestors verifies (and, where absent, creates) every ancestor
// a record at (level, contextID) requires, using the supplied data to
// derive ancestor ids. It returns the record's immediate parent id and
// the set of levels that were actually created.
//
// When an ancestor reference is neither supplied nor derivable the
// guard fails with *MissingRequiredFieldError naming the field, its
// accepted aliases, and an example payload.
func (g *Guard) EnsureAncestors(level Level, contextID, ownerID string, data map[string]any) (string, map[Level]bool, error) {
	created := map[Level]bool{}

	switch level {
	case LevelGlobal:
		return "", created, nil

	case LevelProject:
		// A project's parent is the per-owner global singleton, which
		// is exempt from existence checks — nothing to create.
		return GlobalContextID, created, nil

	case LevelBranch:
		projectID, err := g.storedParent(LevelBranch, contextID, ownerID)
		if err != nil {
			return "", created, err
		}
		if projectID == "" {
			projectID, err = g.deriveProjectID(contextID, ownerID, data)
			if err != nil {
				return "", created, err
			}
		}
		ok, err := g.Materialize(LevelProject, projectID, GlobalContextID, ownerID)
		if err != nil {
			return "", created, err
		}
		created[LevelProject] = ok
		return projectID, created, nil

	case LevelTask:
		branchID, err := g.storedParent(LevelTask, contextID, ownerID)
		if err != nil {
			return "", created, err
		}
		if branchID == "" {
			branchID = firstString(data, branchIDAliases...)
		}
		if branchID == "" && g.assoc != nil {
			var err error
			branchID, err = g.assoc.BranchForTask(contextID, ownerID)
			if err != nil {
				return "", created, fmt.Errorf("hierarchy: branch lookup for task %q: %w", contextID, err)
			}
		}
		if branchID == "" {
			return "", created, &MissingRequiredFieldError{
				Field:   "branch_id",
				Aliases: branchIDAliases,
				Example: `{"branch_id": "feature/login", "title": "Add login form"}`,
			}
		}

		branch, err := g.store.Fetch(LevelBranch, branchID, ownerID)
		if err != nil {
			return "", created, fmt.Errorf("hierarchy: fetch branch %q: %w", branchID, err)
		}
		if branch == nil {
			projectID, err := g.deriveProjectID(branchID, ownerID, data)
			if err != nil {
				return "", created, err
			}
			ok, err := g.Materialize(LevelProject, projectID, GlobalContextID, ownerID)
			if err != nil {
				return "", created, err
			}
			created[LevelProject] = ok

			ok, err = g.Materialize(LevelBranch, branchID, projectID, ownerID)
			if err != nil {
				return "", created, err
			}
			created[LevelBranch] = ok
		}
		return branchID, created, nil
	}

	return "", created, fmt.Errorf("hierarchy: unknown level %q", level)
}

// ResolveParent derives the immediate parent id for a record without
// creating anything — the non-bootstrapping variant used when auto
// creation is disabled. An existing record keeps its stored parent.
func (g *Guard) ResolveParent(level Level, contextID, ownerID string, data map[string]any) (string, error) {
	switch level {
	case LevelGlobal:
		return "", nil
	case LevelProject:
		return GlobalContextID, nil
	}

	if existing, err := g.store.Fetch(level, contextID, ownerID); err != nil {
		return "", fmt.Errorf("hierarchy: fetch %s %q: %w", level, contextID, err)
	} else if existing != nil && existing.ParentID != "" {
		return existing.ParentID, nil
	}

	switch level {
	case LevelBranch:
		if id := firstString(data, projectIDAliases...); id != "" {
			return id, nil
		}
		if g.assoc != nil {
			if id, err := g.assoc.ProjectForBranch(contextID, ownerID); err != nil {
				return "", fmt.Errorf("hierarchy: project lookup for branch %q: %w", contextID, err)
			} else if id != "" {
				return id, nil
			}
		}
		return "", &MissingRequiredFieldError{
			Field:   "project_id",
			Aliases: projectIDAliases,
			Example: `{"project_id": "my-project", "name": "feature/login"}`,
		}
	case LevelTask:
		if id := firstString(data, branchIDAliases...); id != "" {
			return id, nil
		}
		if g.assoc != nil {
			if id, err := g.assoc.BranchForTask(contextID, ownerID); err != nil {
				return "", fmt.Errorf("hierarchy: branch lookup for task %q: %w", contextID, err)
			} else if id != "" {
				return id, nil
			}
		}
		return "", &MissingRequiredFieldError{
			Field:   "branch_id",
			Aliases: branchIDAliases,
			Example: `{"branch_id": "feature/login", "title": "Add login form"}`,
		}
	}

	return "", fmt.Errorf("hierarchy: unknown level %q", level)
}

// Materialize creates a minimal default record at (level, contextID)
// when none exists. Returns true iff this call created it. A racing
// creation (store *ConflictError) counts as already-present, not as a
// failure.
func (g *Guard) Materialize(level Level, contextID, parentID, ownerID string) (bool, error) {
	existing, err := g.store.Fetch(level, contextID, ownerID)
	if err != nil {
		return false, fmt.Errorf("hierarchy: fetch %s %q: %w", level, contextID, err)
	}
	if existing != nil {
		return false, nil
	}

	_, err = g.store.Upsert(&ContextRecord{
		Level:     level,
		ContextID: contextID,
		OwnerID:   ownerID,
		ParentID:  parentID,
		Data:      map[string]any{},
		UpdatedAt: time.Now().UTC(),
	}, true)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return false, nil // lost the race; the ancestor exists
		}
		return false, fmt.Errorf("hierarchy: create %s %q: %w", level, contextID, err)
	}
	return true, nil
}

// ParentHint derives a record's parent id from the association source
// alone — the resolver's fallback when a parent link is untraceable
// through the context tree. Returns "" when nothing is known.
func (g *Guard) ParentHint(level Level, contextID, ownerID string) (string, error) {
	if g.assoc == nil {
		return "", nil
	}
	switch level {
	case LevelBranch:
		id, err := g.assoc.ProjectForBranch(contextID, ownerID)
		if err != nil {
			return "", fmt.Errorf("hierarchy: project lookup for branch %q: %w", contextID, err)
		}
		return id, nil
	case LevelTask:
		id, err := g.assoc.BranchForTask(contextID, ownerID)
		if err != nil {
			return "", fmt.Errorf("hierarchy: branch lookup for task %q: %w", contextID, err)
		}
		return id, nil
	}
	return "", nil
}

// storedParent returns the parent id already persisted for a record,
// or "" when the record is absent. Updates to an existing context must
// not require the caller to restate relationship fields.
func (g *Guard) storedParent(level Level, contextID, ownerID string) (string, error) {
	existing, err := g.store.Fetch(level, contextID, ownerID)
	if err != nil {
		return "", fmt.Errorf("hierarchy: fetch %s %q: %w", level, contextID, err)
	}
	if existing == nil {
		return "", nil
	}
	return existing.ParentID, nil
}

// deriveProjectID extracts a branch's project reference from supplied
// data, falling back to the association source.
func (g *Guard) deriveProjectID(branchID, ownerID string, data map[string]any) (string, error) {
	if id := firstString(data, projectIDAliases...); id != "" {
		return id, nil
	}
	if g.assoc != nil {
		id, err := g.assoc.ProjectForBranch(branchID, ownerID)
		if err != nil {
			return "", fmt.Errorf("hierarchy: project lookup for branch %q: %w", branchID, err)
		}
		if id != "" {
			return id, nil
		}
	}
	return "", &MissingRequiredFieldError{
		Field:   "project_id",
		Aliases: projectIDAliases,
		Example: `{"project_id": "my-project", "name": "feature/login"}`,
	}
}

// firstString returns the first non-empty string value found in data
// under any of the given keys.
func firstString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
