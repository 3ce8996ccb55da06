package hierarchy

import "fmt"

// NotFoundError reports that a context record does not exist and could
// not (or must not) be auto-created. The global level never produces
// this error — an absent global context resolves to an empty map.
type NotFoundError struct {
	Level     Level
	ContextID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("context not found: %s %q", e.Level, e.ContextID)
}

// MissingRequiredFieldError reports that the bootstrap guard could not
// derive a required ancestor reference from the supplied data. It names
// the canonical field, the accepted aliases, and an example payload so
// the caller can fix the request without guessing.
type MissingRequiredFieldError struct {
	Field   string
	Aliases []string
	Example string
}

func (e *MissingRequiredFieldError) Error() string {
	if len(e.Aliases) > 0 {
		return fmt.Sprintf("missing required field %q (aliases: %v); example: %s",
			e.Field, e.Aliases, e.Example)
	}
	return fmt.Sprintf("missing required field %q; example: %s", e.Field, e.Example)
}

// ConflictError reports an optimistic-creation race: an upsert with
// MustNotExist set found an existing record. The bootstrap guard treats
// this as success (another writer created the ancestor first); every
// other caller gets it as a hard error.
type ConflictError struct {
	Level     Level
	ContextID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("context already exists: %s %q", e.Level, e.ContextID)
}

// CacheInconsistencyError reports corruption inside the cache manager or
// the reverse-dependency index. It never crosses the service boundary:
// the manager logs it and degrades to a cache miss, the propagator logs
// it and lets the write succeed.
type CacheInconsistencyError struct {
	Key    string
	Reason string
}

func (e *CacheInconsistencyError) Error() string {
	return fmt.Sprintf("cache inconsistency on %q: %s", e.Key, e.Reason)
}
