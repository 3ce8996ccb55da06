// Package hierarchy implements the four-level context inheritance engine:
// resolution of effective context data across the GLOBAL → PROJECT →
// BRANCH → TASK chain, an inheritance cache with dependency-signature
// invalidation, eager invalidation fan-out to cached descendants, and
// idempotent auto-creation of missing ancestor contexts.
//
// Persistence is abstracted behind the Store interface; the engine treats
// it as a durable owner-scoped map of context records.
package hierarchy

import "fmt"

// Level identifies one tier of the context hierarchy.
type Level string

const (
	LevelGlobal  Level = "global"
	LevelProject Level = "project"
	LevelBranch  Level = "branch"
	LevelTask    Level = "task"
)

// GlobalContextID is the fixed id of the per-owner global context
// singleton. The global level has no parent and exactly one record
// per owner.
const GlobalContextID = "global"

// LevelOrder lists all levels from root to leaf. Resolution walks this
// order top-down; each level's parent is the one before it.
var LevelOrder = []Level{LevelGlobal, LevelProject, LevelBranch, LevelTask}

// ParseLevel converts a string into a Level, accepting only the four
// canonical names.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelGlobal, LevelProject, LevelBranch, LevelTask:
		return Level(s), nil
	}
	return "", fmt.Errorf("hierarchy: unknown level %q (want global, project, branch, or task)", s)
}

// Parent returns the level directly above l. The global level has no
// parent; ok is false for it.
func (l Level) Parent() (Level, bool) {
	for i, lvl := range LevelOrder {
		if lvl == l && i > 0 {
			return LevelOrder[i-1], true
		}
	}
	return "", false
}

// Depth returns the zero-based position of l in the hierarchy
// (global=0 … task=3). Unknown levels return -1.
func (l Level) Depth() int {
	for i, lvl := range LevelOrder {
		if lvl == l {
			return i
		}
	}
	return -1
}

// Chain returns the ordered list of levels from global down to l,
// inclusive. This is the path a full resolution visits.
func (l Level) Chain() []Level {
	d := l.Depth()
	if d < 0 {
		return nil
	}
	chain := make([]Level, d+1)
	copy(chain, LevelOrder[:d+1])
	return chain
}

// String implements fmt.Stringer.
func (l Level) String() string { return string(l) }
