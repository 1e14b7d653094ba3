// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pet-ner/AniDoc-sub000/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the statements the sweep and
// notification layers run on every request or daily pass.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Reminder sweep: the active (not deleted) pet population. Deceased
		// pets are included — the rules skip them, keeping the gate in one
		// place.
		"pets_list_active": `
			SELECT id, owner_id, name, species, birth_date, last_antiparasitic_date, is_deceased
			FROM pets
			WHERE deleted_at IS NULL`,

		// Notifications
		"notifications_list_for_recipient": `
			SELECT id, recipient_key, type, content, is_read, created_at
			FROM notifications
			WHERE recipient_key = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`,
		"notifications_unread_count": `
			SELECT count(*) FROM notifications
			WHERE recipient_key = $1 AND is_read = false`,

		// Announcements: every registered user is a known recipient.
		"recipient_user_ids": "SELECT id FROM users WHERE deleted_at IS NULL",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

// PurgeReadNotifications deletes read notifications older than the retention
// window. Driven by the cleanup ticker in cmd/api.
func (p *Pool) PurgeReadNotifications(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := p.Exec(ctx, `
		DELETE FROM notifications
		WHERE is_read = true AND created_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(retention.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("purge read notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
