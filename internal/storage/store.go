// Package storage persists context records in SQLite. It implements
// the hierarchy.Store adapter plus the branch/task association lookups
// the bootstrap guard uses to derive parents that callers did not
// supply.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskmesh/taskmesh/internal/hierarchy"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".taskmesh")}
}

// Store is the SQLite-backed context store.
type Store struct {
	db *sql.DB
}

var _ hierarchy.Store = (*Store)(nil)
var _ hierarchy.AssociationSource = (*Store)(nil)

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite with WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "taskmesh.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("storage: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS contexts (
			owner_id   TEXT    NOT NULL,
			level      TEXT    NOT NULL,
			context_id TEXT    NOT NULL,
			parent_id  TEXT    NOT NULL DEFAULT '',
			data       TEXT    NOT NULL DEFAULT '{}',
			version    INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT    NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (owner_id, level, context_id)
		);

		CREATE INDEX IF NOT EXISTS idx_ctx_parent ON contexts(owner_id, level, parent_id);

		CREATE TABLE IF NOT EXISTS branch_links (
			owner_id   TEXT NOT NULL,
			branch_id  TEXT NOT NULL,
			project_id TEXT NOT NULL,
			PRIMARY KEY (owner_id, branch_id)
		);

		CREATE TABLE IF NOT EXISTS task_links (
			owner_id  TEXT NOT NULL,
			task_id   TEXT NOT NULL,
			branch_id TEXT NOT NULL,
			PRIMARY KEY (owner_id, task_id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// ─── hierarchy.Store ─────────────────────────────────────────────────────────

// Fetch returns the record at (level, contextID) for owner, or nil when
// absent.
func (s *Store) Fetch(level hierarchy.Level, contextID, ownerID string) (*hierarchy.ContextRecord, error) {
	row := s.db.QueryRow(
		`SELECT parent_id, data, version, updated_at
		   FROM contexts
		  WHERE owner_id = ? AND level = ? AND context_id = ?`,
		ownerID, string(level), contextID,
	)

	var (
		parentID  string
		rawData   string
		version   int64
		updatedAt string
	)
	if err := row.Scan(&parentID, &rawData, &version, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: fetch %s %q: %w", level, contextID, err)
	}

	data := map[string]any{}
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		return nil, fmt.Errorf("storage: decode data for %s %q: %w", level, contextID, err)
	}

	ts, err := time.Parse("2006-01-02 15:04:05", updatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: decode updated_at for %s %q: %w", level, contextID, err)
	}
	return &hierarchy.ContextRecord{
		Level:     level,
		ContextID: contextID,
		OwnerID:   ownerID,
		ParentID:  parentID,
		Data:      data,
		Version:   version,
		UpdatedAt: ts,
	}, nil
}

// FetchParentID returns the declared parent id of a record, or "" when
// the record is absent or has no parent link.
func (s *Store) FetchParentID(level hierarchy.Level, contextID, ownerID string) (string, error) {
	row := s.db.QueryRow(
		`SELECT parent_id FROM contexts WHERE owner_id = ? AND level = ? AND context_id = ?`,
		ownerID, string(level), contextID,
	)
	var parentID string
	if err := row.Scan(&parentID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("storage: parent of %s %q: %w", level, contextID, err)
	}
	return parentID, nil
}

// Upsert creates or replaces a record. Creation starts at version 1;
// every replacement increments the version. With mustNotExist set an
// existing record fails the call with *hierarchy.ConflictError.
func (s *Store) Upsert(rec *hierarchy.ContextRecord, mustNotExist bool) (*hierarchy.ContextRecord, error) {
	data := rec.Data
	if data == nil {
		data = map[string]any{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("storage: encode data for %s %q: %w", rec.Level, rec.ContextID, err)
	}

	if mustNotExist {
		// INSERT OR IGNORE keeps check-then-create race-free: losing
		// the race shows up as zero affected rows, not as corruption.
		result, err := s.db.Exec(
			`INSERT OR IGNORE INTO contexts (owner_id, level, context_id, parent_id, data, version, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, datetime('now'))`,
			rec.OwnerID, string(rec.Level), rec.ContextID, rec.ParentID, string(encoded),
		)
		if err != nil {
			return nil, fmt.Errorf("storage: insert %s %q: %w", rec.Level, rec.ContextID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("storage: insert %s %q: %w", rec.Level, rec.ContextID, err)
		}
		if affected == 0 {
			return nil, &hierarchy.ConflictError{Level: rec.Level, ContextID: rec.ContextID}
		}
	} else {
		_, err := s.db.Exec(
			`INSERT INTO contexts (owner_id, level, context_id, parent_id, data, version, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, datetime('now'))
			 ON CONFLICT (owner_id, level, context_id) DO UPDATE SET
				parent_id  = excluded.parent_id,
				data       = excluded.data,
				version    = contexts.version + 1,
				updated_at = excluded.updated_at`,
			rec.OwnerID, string(rec.Level), rec.ContextID, rec.ParentID, string(encoded),
		)
		if err != nil {
			return nil, fmt.Errorf("storage: upsert %s %q: %w", rec.Level, rec.ContextID, err)
		}
	}

	stored, err := s.Fetch(rec.Level, rec.ContextID, rec.OwnerID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("storage: record %s %q vanished after upsert", rec.Level, rec.ContextID)
	}
	return stored, nil
}

// Delete removes a record. Returns true iff it existed. Descendant
// records are untouched.
func (s *Store) Delete(level hierarchy.Level, contextID, ownerID string) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM contexts WHERE owner_id = ? AND level = ? AND context_id = ?`,
		ownerID, string(level), contextID,
	)
	if err != nil {
		return false, fmt.Errorf("storage: delete %s %q: %w", level, contextID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: delete %s %q: %w", level, contextID, err)
	}
	return affected > 0, nil
}

// ─── hierarchy.AssociationSource ─────────────────────────────────────────────

// LinkBranch records that a branch belongs to a project, so later task
// and branch writes can bootstrap without an explicit project_id.
func (s *Store) LinkBranch(branchID, projectID, ownerID string) error {
	_, err := s.db.Exec(
		`INSERT INTO branch_links (owner_id, branch_id, project_id) VALUES (?, ?, ?)
		 ON CONFLICT (owner_id, branch_id) DO UPDATE SET project_id = excluded.project_id`,
		ownerID, branchID, projectID,
	)
	if err != nil {
		return fmt.Errorf("storage: link branch %q: %w", branchID, err)
	}
	return nil
}

// LinkTask records that a task belongs to a branch.
func (s *Store) LinkTask(taskID, branchID, ownerID string) error {
	_, err := s.db.Exec(
		`INSERT INTO task_links (owner_id, task_id, branch_id) VALUES (?, ?, ?)
		 ON CONFLICT (owner_id, task_id) DO UPDATE SET branch_id = excluded.branch_id`,
		ownerID, taskID, branchID,
	)
	if err != nil {
		return fmt.Errorf("storage: link task %q: %w", taskID, err)
	}
	return nil
}

// ProjectForBranch returns the project a branch is linked to, or "".
func (s *Store) ProjectForBranch(branchID, ownerID string) (string, error) {
	row := s.db.QueryRow(
		`SELECT project_id FROM branch_links WHERE owner_id = ? AND branch_id = ?`,
		ownerID, branchID,
	)
	var projectID string
	if err := row.Scan(&projectID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("storage: project for branch %q: %w", branchID, err)
	}
	return projectID, nil
}

// BranchForTask returns the branch a task is linked to, or "".
func (s *Store) BranchForTask(taskID, ownerID string) (string, error) {
	row := s.db.QueryRow(
		`SELECT branch_id FROM task_links WHERE owner_id = ? AND task_id = ?`,
		ownerID, taskID,
	)
	var branchID string
	if err := row.Scan(&branchID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("storage: branch for task %q: %w", taskID, err)
	}
	return branchID, nil
}
