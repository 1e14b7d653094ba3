// Package pets provides the read-only pet lifecycle projection consumed by
// the reminder engine. The pet aggregate itself (registration, medical
// records, ownership) lives in the main application service; this package
// only reads the fields the reminder rules need.
package pets

import (
	"context"
	"time"
)

// Snapshot is an immutable per-evaluation projection of one pet.
type Snapshot struct {
	ID      string
	OwnerID string
	Name    string
	Species string

	BirthDate *time.Time
	// LastAntiparasiticDate is the most recent heartworm preventive dose,
	// nil when none has been recorded.
	LastAntiparasiticDate *time.Time

	Deceased bool
}

// Directory enumerates the active pet population for a sweep.
type Directory interface {
	ListActive(ctx context.Context) ([]Snapshot, error)
}
