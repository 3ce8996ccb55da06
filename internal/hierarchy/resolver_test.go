package hierarchy_test

import (
	"errors"
	"testing"

	"github.com/taskmesh/taskmesh/internal/hierarchy"
)

const owner = "user-1"

// ─── Full inheritance walk ──────────────────────────────────────────────────

func TestResolve_MergesAncestorChain(t *testing.T) {
	store := newMemStore()
	seedChain(t, store, owner)
	r := hierarchy.NewResolver(store, nil)

	res, err := r.Resolve(hierarchy.LevelTask, "task-9", owner, true)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if res.MergedData["theme"] != "light" {
		t.Errorf("theme = %v, want global's %q", res.MergedData["theme"], "light")
	}
	limits, ok := res.MergedData["limits"].(map[string]any)
	if !ok {
		t.Fatalf("limits missing: %v", res.MergedData)
	}
	if limits["max"] != float64(20) {
		t.Errorf("limits.max = %v, want project override 20", limits["max"])
	}
	if res.MergedData["title"] != "Add login form" {
		t.Errorf("title = %v, want task's own value", res.MergedData["title"])
	}

	wantPath := []string{"global", "project", "branch", "task"}
	gotPath := res.Levels()
	if len(gotPath) != len(wantPath) {
		t.Fatalf("resolution path = %v, want %v", gotPath, wantPath)
	}
	for i := range wantPath {
		if gotPath[i] != wantPath[i] {
			t.Errorf("path[%d] = %s, want %s", i, gotPath[i], wantPath[i])
		}
	}
}

func TestResolve_PathRecordsVersions(t *testing.T) {
	store := newMemStore()
	seedChain(t, store, owner)
	store.put(t, hierarchy.LevelGlobal, hierarchy.GlobalContextID, owner, "",
		map[string]any{"theme": "dark"}) // version 2

	r := hierarchy.NewResolver(store, nil)
	res, err := r.Resolve(hierarchy.LevelProject, "proj-1", owner, true)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if res.ResolutionPath[0].Version != 2 {
		t.Errorf("global path version = %d, want 2", res.ResolutionPath[0].Version)
	}
	if res.ResolutionPath[1].Version != 1 {
		t.Errorf("project path version = %d, want 1", res.ResolutionPath[1].Version)
	}
}

// ─── Non-inheriting mode ────────────────────────────────────────────────────

func TestResolve_NoInheritReturnsOwnDataOnly(t *testing.T) {
	store := newMemStore()
	seedChain(t, store, owner)
	r := hierarchy.NewResolver(store, nil)

	res, err := r.Resolve(hierarchy.LevelTask, "task-9", owner, false)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if _, ok := res.MergedData["theme"]; ok {
		t.Error("no-inherit result leaked ancestor data")
	}
	if res.MergedData["title"] != "Add login form" {
		t.Errorf("title = %v, want own data", res.MergedData["title"])
	}
	if len(res.ResolutionPath) != 1 {
		t.Errorf("path = %v, want single entry", res.Levels())
	}
}

// ─── Missing records ────────────────────────────────────────────────────────

func TestResolve_MissingRecordFails(t *testing.T) {
	store := newMemStore()
	r := hierarchy.NewResolver(store, nil)

	_, err := r.Resolve(hierarchy.LevelTask, "ghost", owner, true)
	var notFound *hierarchy.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if notFound.Level != hierarchy.LevelTask || notFound.ContextID != "ghost" {
		t.Errorf("NotFoundError = %+v", notFound)
	}
}

func TestResolve_GlobalNeverFails(t *testing.T) {
	store := newMemStore()
	r := hierarchy.NewResolver(store, nil)

	res, err := r.Resolve(hierarchy.LevelGlobal, "anything-unset", owner, true)
	if err != nil {
		t.Fatalf("global resolve must not fail: %v", err)
	}
	if len(res.MergedData) != 0 {
		t.Errorf("absent global data = %v, want empty", res.MergedData)
	}
	if res.ContextID != hierarchy.GlobalContextID {
		t.Errorf("context id = %q, want singleton %q", res.ContextID, hierarchy.GlobalContextID)
	}
}

func TestResolve_AbsentGlobalMergesEmpty(t *testing.T) {
	store := newMemStore()
	store.put(t, hierarchy.LevelProject, "proj-1", owner, hierarchy.GlobalContextID,
		map[string]any{"name": "p1"})
	r := hierarchy.NewResolver(store, nil)

	res, err := r.Resolve(hierarchy.LevelProject, "proj-1", owner, true)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.MergedData["name"] != "p1" {
		t.Errorf("data = %v", res.MergedData)
	}

	// The absent global record still pins the path at version 0 so a
	// later creation invalidates dependent resolutions.
	if res.ResolutionPath[0].Level != hierarchy.LevelGlobal || res.ResolutionPath[0].Version != 0 {
		t.Errorf("path[0] = %+v, want global @ version 0", res.ResolutionPath[0])
	}
}

func TestResolve_MissingIntermediateSkippedWithoutGuard(t *testing.T) {
	store := newMemStore()
	store.put(t, hierarchy.LevelGlobal, hierarchy.GlobalContextID, owner, "",
		map[string]any{"theme": "light"})
	// Task points at a branch that has no record; the branch's project
	// is untraceable.
	store.put(t, hierarchy.LevelTask, "task-1", owner, "missing-branch",
		map[string]any{"title": "t"})

	r := hierarchy.NewResolver(store, nil)
	res, err := r.Resolve(hierarchy.LevelTask, "task-1", owner, true)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if res.MergedData["theme"] != "light" {
		t.Error("global data should still merge")
	}
	if res.MergedData["title"] != "t" {
		t.Error("own data should merge")
	}

	// Branch is on the path (version 0); project is untraceable and absent.
	for _, p := range res.ResolutionPath {
		if p.Level == hierarchy.LevelProject {
			t.Errorf("untraceable project on path: %v", res.Levels())
		}
		if p.Level == hierarchy.LevelBranch && p.Version != 0 {
			t.Errorf("missing branch version = %d, want 0", p.Version)
		}
	}
}

func TestResolve_GuardMaterializesMissingAncestor(t *testing.T) {
	store := newMemStore()
	store.put(t, hierarchy.LevelProject, "proj-1", owner, hierarchy.GlobalContextID,
		map[string]any{"name": "p1"})
	// Branch record missing, but the task's parent link names it and
	// the association source knows its project.
	store.put(t, hierarchy.LevelTask, "task-1", owner, "feature/x",
		map[string]any{"title": "t"})
	assoc := newMemAssoc()
	assoc.branchProject["feature/x|"+owner] = "proj-1"

	guard := hierarchy.NewGuard(store, assoc)
	r := hierarchy.NewResolver(store, guard)

	res, err := r.Resolve(hierarchy.LevelTask, "task-1", owner, true)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	branch, err := store.Fetch(hierarchy.LevelBranch, "feature/x", owner)
	if err != nil || branch == nil {
		t.Fatalf("branch not materialized: rec=%v err=%v", branch, err)
	}
	if branch.ParentID != "proj-1" {
		t.Errorf("materialized branch parent = %q, want proj-1", branch.ParentID)
	}

	for _, p := range res.ResolutionPath {
		if p.Level == hierarchy.LevelBranch && p.Version != 1 {
			t.Errorf("materialized branch version on path = %d, want 1", p.Version)
		}
	}
}
