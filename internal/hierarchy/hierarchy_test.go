package hierarchy_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/taskmesh/taskmesh/internal/hierarchy"
)

// memStore is an in-memory hierarchy.Store for tests.
type memStore struct {
	mu   sync.Mutex
	recs map[string]*hierarchy.ContextRecord

	failFetches int // while positive, Fetch fails and decrements
	upserts     int
	creations   int
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]*hierarchy.ContextRecord{}}
}

func recKey(level hierarchy.Level, contextID, ownerID string) string {
	return fmt.Sprintf("%s|%s|%s", ownerID, level, contextID)
}

func (m *memStore) Fetch(level hierarchy.Level, contextID, ownerID string) (*hierarchy.ContextRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFetches > 0 {
		m.failFetches--
		return nil, errors.New("store offline")
	}
	rec, ok := m.recs[recKey(level, contextID, ownerID)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) FetchParentID(level hierarchy.Level, contextID, ownerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[recKey(level, contextID, ownerID)]
	if !ok {
		return "", nil
	}
	return rec.ParentID, nil
}

func (m *memStore) Upsert(rec *hierarchy.ContextRecord, mustNotExist bool) (*hierarchy.ContextRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++

	key := recKey(rec.Level, rec.ContextID, rec.OwnerID)
	existing, ok := m.recs[key]
	if ok && mustNotExist {
		return nil, &hierarchy.ConflictError{Level: rec.Level, ContextID: rec.ContextID}
	}

	stored := *rec
	if stored.Data == nil {
		stored.Data = map[string]any{}
	}
	if ok {
		stored.Version = existing.Version + 1
	} else {
		stored.Version = 1
		m.creations++
	}
	stored.UpdatedAt = time.Now().UTC()
	m.recs[key] = &stored

	cp := stored
	return &cp, nil
}

func (m *memStore) Delete(level hierarchy.Level, contextID, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recKey(level, contextID, ownerID)
	_, ok := m.recs[key]
	delete(m.recs, key)
	return ok, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

// put seeds a record directly, bypassing version bookkeeping rules.
func (m *memStore) put(t *testing.T, level hierarchy.Level, contextID, ownerID, parentID string, data map[string]any) {
	t.Helper()
	if _, err := m.Upsert(&hierarchy.ContextRecord{
		Level:     level,
		ContextID: contextID,
		OwnerID:   ownerID,
		ParentID:  parentID,
		Data:      data,
	}, false); err != nil {
		t.Fatalf("seed %s %q: %v", level, contextID, err)
	}
}

// memAssoc is an in-memory hierarchy.AssociationSource.
type memAssoc struct {
	branchProject map[string]string // branchID|owner → projectID
	taskBranch    map[string]string // taskID|owner → branchID
}

func newMemAssoc() *memAssoc {
	return &memAssoc{branchProject: map[string]string{}, taskBranch: map[string]string{}}
}

func (a *memAssoc) ProjectForBranch(branchID, ownerID string) (string, error) {
	return a.branchProject[branchID+"|"+ownerID], nil
}

func (a *memAssoc) BranchForTask(taskID, ownerID string) (string, error) {
	return a.taskBranch[taskID+"|"+ownerID], nil
}

func (a *memAssoc) LinkBranch(branchID, projectID, ownerID string) error {
	a.branchProject[branchID+"|"+ownerID] = projectID
	return nil
}

func (a *memAssoc) LinkTask(taskID, branchID, ownerID string) error {
	a.taskBranch[taskID+"|"+ownerID] = branchID
	return nil
}

// seedChain creates a full global→project→branch→task chain for owner.
func seedChain(t *testing.T, store *memStore, owner string) {
	t.Helper()
	store.put(t, hierarchy.LevelGlobal, hierarchy.GlobalContextID, owner, "",
		map[string]any{"theme": "light", "limits": map[string]any{"max": float64(10)}})
	store.put(t, hierarchy.LevelProject, "proj-1", owner, hierarchy.GlobalContextID,
		map[string]any{"limits": map[string]any{"max": float64(20)}})
	store.put(t, hierarchy.LevelBranch, "feature/login", owner, "proj-1",
		map[string]any{"reviewers": []any{"ana"}})
	store.put(t, hierarchy.LevelTask, "task-9", owner, "feature/login",
		map[string]any{"title": "Add login form"})
}
