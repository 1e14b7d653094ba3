package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Pet-ner/AniDoc-sub000/internal/api/respond"
	"github.com/Pet-ner/AniDoc-sub000/internal/notify"
	"github.com/Pet-ner/AniDoc-sub000/internal/push"
)

// ListNotifications returns a newest-first page of a recipient's records.
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param recipient query string true "Recipient key"
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	key := recipientKey(r)
	if key == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "recipient is required")
		return
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	records, err := h.store.ListForRecipient(r.Context(), key, limit, offset)
	if err != nil {
		h.logger.Error("List notifications failed", "recipient", key, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "LIST_FAILED", "could not list notifications")
		return
	}
	if records == nil {
		records = []notify.Notification{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"notifications": records,
		"limit":         limit,
		"offset":        offset,
	})
}

// UnreadCount returns the number of unread records for a recipient.
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Param recipient query string true "Recipient key"
// @Success 200 {object} map[string]interface{}
// @Router /notifications/unread-count [get]
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	key := recipientKey(r)
	if key == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "recipient is required")
		return
	}
	count, err := h.store.CountUnread(r.Context(), key)
	if err != nil {
		h.logger.Error("Unread count failed", "recipient", key, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "COUNT_FAILED", "could not count notifications")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"unread": count})
}

// MarkRead flips one record to read.
// @Summary Mark one notification read
// @Tags notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /notifications/{id}/read [put]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.MarkRead(r.Context(), id); err != nil {
		if notify.IsNotFound(err) {
			respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "notification not found")
			return
		}
		h.logger.Error("Mark read failed", "notification_id", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "MARK_FAILED", "could not mark notification read")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"marked": 1})
}

// MarkAllRead flips every unread record of a recipient.
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Param recipient query string true "Recipient key"
// @Success 200 {object} map[string]interface{}
// @Router /notifications/read-all [put]
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	key := recipientKey(r)
	if key == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "recipient is required")
		return
	}
	marked, err := h.store.MarkAllRead(r.Context(), key)
	if err != nil {
		h.logger.Error("Mark all read failed", "recipient", key, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "MARK_FAILED", "could not mark notifications read")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"marked": marked})
}

// --------------------------------------------------------------------------
// Internal dispatch entry points (collaborating services)
// --------------------------------------------------------------------------

type notifyRequest struct {
	Recipient string          `json:"recipient"`
	Type      notify.Type     `json:"type"`
	Content   string          `json:"content"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NotifyInternal persists and pushes one notification on behalf of a
// collaborator (reservation approval, notice publication, ...).
// @Summary Dispatch one notification
// @Tags internal
// @Accept json
// @Produce json
// @Param request body notifyRequest true "Dispatch request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /internal/notify [post]
func (h *Handler) NotifyInternal(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.Recipient == "" || req.Type == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "recipient and type are required")
		return
	}

	payload, err := decodePayload(req.Type, req.Payload)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "BAD_PAYLOAD", "invalid payload for type", err.Error())
		return
	}

	saved, err := h.dispatcher.Notify(r.Context(), req.Recipient, req.Type, req.Content, payload)
	if err != nil {
		// Persistence failure is the only dispatch error surfaced: the
		// caller may need to retry or alert.
		if errors.Is(err, notify.ErrPersistenceFailure) {
			respond.WriteError(w, http.StatusBadGateway, "PERSISTENCE_FAILURE", "notification could not be stored")
			return
		}
		h.logger.Error("Dispatch failed", "recipient", req.Recipient, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DISPATCH_FAILED", "notification dispatch failed")
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, saved)
}

// NotifyAllInternal persists one record per known recipient and broadcasts.
// @Summary Dispatch a system-wide announcement
// @Tags internal
// @Accept json
// @Produce json
// @Param request body notifyRequest true "Dispatch request (recipient ignored)"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /internal/notify-all [post]
func (h *Handler) NotifyAllInternal(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.Type == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "type is required")
		return
	}

	payload, err := decodePayload(req.Type, req.Payload)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "BAD_PAYLOAD", "invalid payload for type", err.Error())
		return
	}

	count, err := h.dispatcher.NotifyAllKnownRecipients(r.Context(), req.Type, req.Content, payload)
	if err != nil {
		if errors.Is(err, notify.ErrPersistenceFailure) {
			respond.WriteError(w, http.StatusBadGateway, "PERSISTENCE_FAILURE", "announcement could not be stored")
			return
		}
		h.logger.Error("Announcement dispatch failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DISPATCH_FAILED", "announcement dispatch failed")
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, map[string]interface{}{"recipients": count})
}

type roomMessageRequest struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Message    string `json:"message"`
}

// RoomBroadcast pushes a chat message to every subscriber of a room.
// Chat history is persisted by the chat service; this endpoint only fans
// out to the room's live channels.
// @Summary Broadcast a chat message to a room
// @Tags internal
// @Accept json
// @Produce json
// @Param roomID path string true "Room ID"
// @Param request body roomMessageRequest true "Message"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /internal/rooms/{roomID}/broadcast [post]
func (h *Handler) RoomBroadcast(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	var req roomMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.SenderID == "" || req.Message == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "senderId and message are required")
		return
	}

	key := push.RoomKey(roomID)
	payload := notify.ChatPayload{
		RoomID:     roomID,
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Message:    req.Message,
		SentAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.registry.SendTo(key, payload.EventName(), payload); err != nil {
		respond.WriteError(w, http.StatusBadGateway, "TRANSPORT_FAILURE", "delivery failed for at least one subscriber")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"delivered": h.registry.Count(key),
	})
}

// decodePayload turns a raw JSON payload into the typed variant for the
// notification type. A missing payload falls back to a shape derived from
// the content string.
func decodePayload(typ notify.Type, raw json.RawMessage) (notify.Payload, error) {
	if len(raw) == 0 {
		return nil, nil // dispatcher derives a default payload
	}

	var payload notify.Payload
	var target any
	switch typ {
	case notify.TypeNotice:
		target = &notify.NoticePayload{}
	case notify.TypeVaccination:
		target = &notify.VaccinationPayload{}
	case notify.TypeAntiparasitic:
		target = &notify.AntiparasiticPayload{}
	case notify.TypeReservation:
		target = &notify.ReservationPayload{}
	case notify.TypeChat:
		target = &notify.ChatPayload{}
	default:
		return nil, fmt.Errorf("unknown notification type %q", typ)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, err
	}

	switch v := target.(type) {
	case *notify.NoticePayload:
		payload = *v
	case *notify.VaccinationPayload:
		payload = *v
	case *notify.AntiparasiticPayload:
		payload = *v
	case *notify.ReservationPayload:
		payload = *v
	case *notify.ChatPayload:
		payload = *v
	}
	return payload, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
