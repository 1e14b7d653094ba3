package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pet-ner/AniDoc-sub000/internal/push"
)

// PgStore persists notification records in Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Save(ctx context.Context, n Notification) (Notification, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_key, type, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
		RETURNING id, recipient_key, type, content, is_read, created_at`,
		n.ID, n.RecipientKey, n.Type, n.Content, n.CreatedAt,
	).Scan(&n.ID, &n.RecipientKey, &n.Type, &n.Content, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// MarkRead flips is_read to true; the transition is one-way so re-marking
// an already-read record is a no-op, not an error.
func (s *PgStore) MarkRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) MarkAllRead(ctx context.Context, recipientKey string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = true
		WHERE recipient_key = $1 AND is_read = false`, recipientKey)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListForRecipient returns newest-first pages via the
// notifications_list_for_recipient prepared statement (see internal/db).
func (s *PgStore) ListForRecipient(ctx context.Context, recipientKey string, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, "notifications_list_for_recipient", recipientKey, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientKey, &n.Type, &n.Content, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PgStore) CountUnread(ctx context.Context, recipientKey string) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "notifications_unread_count", recipientKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// PgRecipientDirectory resolves "all known recipients" to the registered
// user population, namespaced as user keys.
type PgRecipientDirectory struct {
	pool *pgxpool.Pool
}

func NewPgRecipientDirectory(pool *pgxpool.Pool) *PgRecipientDirectory {
	return &PgRecipientDirectory{pool: pool}
}

func (d *PgRecipientDirectory) AllKnownRecipientKeys(ctx context.Context) ([]string, error) {
	rows, err := d.pool.Query(ctx, "recipient_user_ids")
	if err != nil {
		return nil, fmt.Errorf("list recipient user ids: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan recipient user id: %w", err)
		}
		keys = append(keys, push.UserKey(userID))
	}
	return keys, rows.Err()
}

// IsNotFound reports whether an error is the store's not-found condition,
// covering both this package's sentinel and a raw pgx no-rows error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
