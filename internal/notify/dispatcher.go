package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Pet-ner/AniDoc-sub000/internal/push"
	"github.com/Pet-ner/AniDoc-sub000/internal/reminder"
)

// Dispatcher is the single fan-in entry point for notification dispatch:
// persist first, then deliver to whatever channels are live.
type Dispatcher struct {
	store      Store
	registry   *push.Registry
	recipients RecipientDirectory
	logger     *slog.Logger
	now        func() time.Time
}

func NewDispatcher(store Store, registry *push.Registry, recipients RecipientDirectory, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		registry:   registry,
		recipients: recipients,
		logger:     logger,
		now:        time.Now,
	}
}

// Notify persists one notification record and pushes its payload to the
// recipient's live channels. Persistence failure aborts before any delivery
// attempt; a push transport failure is logged but never unwinds the record.
func (d *Dispatcher) Notify(ctx context.Context, recipientKey string, typ Type, content string, payload Payload) (Notification, error) {
	if payload == nil {
		payload = payloadFor(typ, content)
	}

	record := Notification{
		ID:           uuid.NewString(),
		RecipientKey: recipientKey,
		Type:         typ,
		Content:      content,
		CreatedAt:    d.now().UTC(),
	}

	saved, err := d.store.Save(ctx, record)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	if err := d.registry.SendTo(recipientKey, payload.EventName(), payload); err != nil {
		// The record stands; the recipient sees it on their next list query.
		d.logger.Warn("Push delivery failed after persist",
			"recipient", recipientKey, "type", typ, "notification_id", saved.ID, "error", err)
	}
	return saved, nil
}

// NotifyAllKnownRecipients persists one record per known recipient key and
// then broadcasts the payload to every live channel. Recipients with no
// open connection still get a durable, later-retrievable record. Returns
// how many records were persisted.
func (d *Dispatcher) NotifyAllKnownRecipients(ctx context.Context, typ Type, content string, payload Payload) (int, error) {
	if payload == nil {
		payload = payloadFor(typ, content)
	}

	keys, err := d.recipients.AllKnownRecipientKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve recipient keys: %w", err)
	}

	persisted := 0
	for _, key := range keys {
		record := Notification{
			ID:           uuid.NewString(),
			RecipientKey: key,
			Type:         typ,
			Content:      content,
			CreatedAt:    d.now().UTC(),
		}
		if _, err := d.store.Save(ctx, record); err != nil {
			d.logger.Warn("Announcement record not persisted",
				"recipient", key, "type", typ, "error", err)
			continue
		}
		persisted++
	}
	if persisted == 0 && len(keys) > 0 {
		return 0, fmt.Errorf("%w: no announcement record persisted", ErrPersistenceFailure)
	}

	if err := d.registry.BroadcastAll(payload.EventName(), payload); err != nil {
		d.logger.Warn("Broadcast delivery failed after persist", "type", typ, "error", err)
	}

	d.logger.Info("Announcement dispatched", "type", typ, "recipients", persisted)
	return persisted, nil
}

// Dispatch adapts a reminder event into a notification, implementing
// reminder.EventSink for the daily sweep.
func (d *Dispatcher) Dispatch(ctx context.Context, ev reminder.Event) error {
	key := push.UserKey(ev.RecipientID)
	due := ev.DueDate.Format("2006-01-02")

	var typ Type
	var payload Payload
	switch ev.Kind {
	case reminder.KindVaccination:
		typ = TypeVaccination
		payload = VaccinationPayload{
			PetID:   ev.PetID,
			PetName: ev.PetName,
			Round:   ev.Round,
			DueDate: due,
			Message: ev.Message,
		}
	case reminder.KindAntiparasitic:
		typ = TypeAntiparasitic
		payload = AntiparasiticPayload{
			PetID:   ev.PetID,
			PetName: ev.PetName,
			DueDate: due,
			Message: ev.Message,
		}
	default:
		return fmt.Errorf("unknown reminder kind %q", ev.Kind)
	}

	_, err := d.Notify(ctx, key, typ, ev.Message, payload)
	return err
}
