package pets

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDirectory reads pet snapshots from Postgres.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

// ListActive returns snapshots for every living, registered pet.
// Uses the pets_list_active prepared statement (see internal/db).
func (d *PgDirectory) ListActive(ctx context.Context) ([]Snapshot, error) {
	rows, err := d.pool.Query(ctx, "pets_list_active")
	if err != nil {
		return nil, fmt.Errorf("list active pets: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(
			&s.ID, &s.OwnerID, &s.Name, &s.Species,
			&s.BirthDate, &s.LastAntiparasiticDate, &s.Deceased,
		); err != nil {
			return nil, fmt.Errorf("scan pet snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
