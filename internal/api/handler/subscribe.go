package handler

import (
	"net/http"
	"time"

	"github.com/Pet-ner/AniDoc-sub000/internal/api/respond"
	"github.com/Pet-ner/AniDoc-sub000/internal/push"
)

// connectedPayload is the initial acknowledgment event on a new channel.
type connectedPayload struct {
	ChannelID string `json:"channelId"`
	Recipient string `json:"recipient"`
}

// Subscribe opens a long-lived SSE channel for a recipient key.
// The server sends a "connected" acknowledgment, then named events until
// the client disconnects or the channel idles out.
// @Summary Subscribe to push events
// @Description Opens a server-sent-event stream scoped to a recipient key (?recipient=user:<id> or ?userId= / ?roomId=).
// @Tags push
// @Produce text/event-stream
// @Param recipient query string false "Full recipient key (user:<id> or room:<id>)"
// @Param userId query string false "User ID shorthand"
// @Param roomId query string false "Room ID shorthand"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} respond.ErrorResponse
// @Router /subscribe [get]
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	key := recipientKey(r)
	if key == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "recipient, userId, or roomId is required")
		return
	}

	transport, err := push.NewSSETransport(w, h.cfg.PushSendTimeout)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "response writer cannot stream")
		return
	}

	ch := push.NewChannel(key, transport, r.Context())
	h.registry.Register(key, ch)

	if err := ch.Send("connected", connectedPayload{ChannelID: ch.ID(), Recipient: key}); err != nil {
		// Teardown already ran via the registry's cleanup hook.
		h.logger.Debug("Subscription handshake failed", "recipient", key, "error", err)
		return
	}
	h.logger.Info("Push channel subscribed", "recipient", key, "channel_id", ch.ID())

	h.serveChannel(r, ch)
}

// serveChannel blocks until the channel dies: client disconnect, idle
// timeout, or teardown from a failed send on the dispatch path.
func (h *Handler) serveChannel(r *http.Request, ch *push.Channel) {
	idleLimit := h.cfg.PushChannelTimeout
	timer := time.NewTimer(idleLimit)
	defer timer.Stop()

	for {
		select {
		case <-r.Context().Done():
			ch.Close(push.ReasonClientAbort)
			return
		case <-ch.Done():
			return
		case <-timer.C:
			idle := time.Since(ch.LastActivity())
			if idle >= idleLimit {
				h.logger.Info("Push channel idled out",
					"recipient", ch.Recipient(), "channel_id", ch.ID(), "idle", idle.Round(time.Second))
				ch.Close(push.ReasonTimeout)
				return
			}
			timer.Reset(idleLimit - idle)
		}
	}
}
