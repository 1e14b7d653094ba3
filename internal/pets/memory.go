package pets

import (
	"context"
	"sync"
)

// MemDirectory is an in-memory Directory for tests and local development.
type MemDirectory struct {
	mu   sync.RWMutex
	pets []Snapshot
}

func NewMemDirectory(pets ...Snapshot) *MemDirectory {
	return &MemDirectory{pets: pets}
}

func (d *MemDirectory) Add(s Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pets = append(d.pets, s)
}

func (d *MemDirectory) ListActive(ctx context.Context) ([]Snapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Snapshot, len(d.pets))
	copy(out, d.pets)
	return out, nil
}
