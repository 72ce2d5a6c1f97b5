// Package state persists run progress across reboot boundaries. The cycle
// budget bounds the whole multi-invocation run: a checkpoint written
// before a reboot lets the next invocation resume counting where the
// previous one stopped instead of restarting at zero.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Checkpoint is the slice of run state that survives a reboot.
type Checkpoint struct {
	CyclesUsed    int
	RebootPending bool
	UpdatedAt     time.Time
}

// Store keeps checkpoints in SQLite, keyed by plan name.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS checkpoints (
		plan TEXT PRIMARY KEY,
		cycles_used INTEGER NOT NULL,
		reboot_pending INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the checkpoint for a plan, or nil when none exists.
func (s *Store) Load(plan string) (*Checkpoint, error) {
	row := s.db.QueryRow(`SELECT cycles_used, reboot_pending, updated_at FROM checkpoints WHERE plan = ?`, plan)

	var cp Checkpoint
	var pending int
	var updated string
	if err := row.Scan(&cp.CyclesUsed, &pending, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cp.RebootPending = pending != 0
	ts, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint timestamp: %w", err)
	}
	cp.UpdatedAt = ts

	return &cp, nil
}

// Save writes or replaces the checkpoint for a plan.
func (s *Store) Save(plan string, cp Checkpoint) error {
	pending := 0
	if cp.RebootPending {
		pending = 1
	}
	updated := cp.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO checkpoints (plan, cycles_used, reboot_pending, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(plan) DO UPDATE SET
			cycles_used = excluded.cycles_used,
			reboot_pending = excluded.reboot_pending,
			updated_at = excluded.updated_at`,
		plan, cp.CyclesUsed, pending, updated.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint for a plan. Clearing an absent checkpoint
// is not an error.
func (s *Store) Clear(plan string) error {
	if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE plan = ?`, plan); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
