package hierarchy

// Store is the persistence interface the engine reads and writes
// context records through. Implementations are owner-scoped durable
// maps; the engine performs no retries and treats every call as
// fail-fast (retry policy, if any, belongs to the implementation).
type Store interface {
	// Fetch returns the record at (level, contextID) for owner, or
	// (nil, nil) when no such record exists. Absence is not an error.
	Fetch(level Level, contextID, ownerID string) (*ContextRecord, error)

	// FetchParentID returns the declared parent id of a non-global
	// record, or "" when the record or its parent link is absent.
	FetchParentID(level Level, contextID, ownerID string) (string, error)

	// Upsert creates or replaces a record, incrementing its version.
	// With mustNotExist set it fails with *ConflictError when a record
	// is already present. Returns the stored record with its new
	// version and timestamp.
	Upsert(rec *ContextRecord, mustNotExist bool) (*ContextRecord, error)

	// Delete removes a record. Returns true iff it existed. Descendant
	// records are untouched — deletion never cascades data.
	Delete(level Level, contextID, ownerID string) (bool, error)
}

// AssociationSource answers parent lookups from outside the context
// tree, letting the bootstrap guard derive a branch's project (or a
// task's branch) when the caller did not supply it. Implementations
// return "" when no association is known.
type AssociationSource interface {
	ProjectForBranch(branchID, ownerID string) (string, error)
	BranchForTask(taskID, ownerID string) (string, error)
}

// AssociationRecorder persists the parent associations successful
// writes establish, feeding the AssociationSource later bootstraps
// derive parents from. Recording is best-effort on the write path.
type AssociationRecorder interface {
	LinkBranch(branchID, projectID, ownerID string) error
	LinkTask(taskID, branchID, ownerID string) error
}
