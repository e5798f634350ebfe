// Package runlog provides persistent run history for workflow runs.
package runlog

import (
	"errors"
	"time"
)

// Record is the persisted view of one workflow run. The orchestrator
// saves a record when a run starts and again at its terminal state.
type Record struct {
	RunID       string
	Persona     string
	Query       string
	Status      string
	ErrKind     string
	ErrMessage  string
	Attempts    int
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Store persists run records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a record, overwriting any previous record for the run.
	Save(rec Record) error

	// Load retrieves a run's record.
	// Returns ErrNotFound if the run was never saved.
	Load(runID string) (Record, error)

	// List returns the most recent records, newest first.
	// limit <= 0 returns all records.
	List(limit int) ([]Record, error)

	// Delete removes a run's record.
	// Returns nil if the record doesn't exist.
	Delete(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for run history operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("run record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("run history store closed")
)
