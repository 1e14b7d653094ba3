// Package notify persists notification records and fans them out to live
// push channels. The Dispatcher is the single fan-in point for every
// "notify someone" event in the system: reminder sweeps, reservation status
// changes, and published notices all go through it.
//
// Delivery contract: a record is persisted first, then pushed. Persistence
// failure aborts the dispatch before any delivery attempt; a delivery
// failure never rolls the record back — the stored record is the durable
// source of truth and a recipient with no open channel sees it on their
// next list query.
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrPersistenceFailure marks a dispatch that failed before delivery
// because the notification record could not be durably stored.
var ErrPersistenceFailure = errors.New("notify: persistence failure")

// ErrNotFound is returned by stores for unknown notification IDs.
var ErrNotFound = errors.New("notify: notification not found")

// Type classifies a notification record.
type Type string

const (
	TypeVaccination   Type = "VACCINATION"
	TypeAntiparasitic Type = "ANTIPARASITIC"
	TypeNotice        Type = "NOTICE"
	TypeReservation   Type = "RESERVATION"
	TypeChat          Type = "CHAT"
)

// Notification is the durable record of one dispatched event.
// IsRead transitions false→true only, via MarkRead/MarkAllRead.
type Notification struct {
	ID           string    `json:"id"`
	RecipientKey string    `json:"recipientKey"`
	Type         Type      `json:"type"`
	Content      string    `json:"content"`
	IsRead       bool      `json:"isRead"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store persists notification records. Implementations rely on their own
// storage's transactional guarantees; this package adds none.
type Store interface {
	Save(ctx context.Context, n Notification) (Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipientKey string) (int, error)
	ListForRecipient(ctx context.Context, recipientKey string, limit, offset int) ([]Notification, error)
	CountUnread(ctx context.Context, recipientKey string) (int, error)
}

// RecipientDirectory enumerates every known recipient key for system-wide
// announcements, including recipients with no open channel.
type RecipientDirectory interface {
	AllKnownRecipientKeys(ctx context.Context) ([]string, error)
}
