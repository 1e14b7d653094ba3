package push

import (
	"fmt"
	"net/http"
	"time"
)

// SSETransport writes server-sent-event frames to an HTTP response.
// Each write is bounded by a deadline so a stalled client cannot hang the
// dispatching goroutine; an expired deadline is classified as a timeout and
// the channel is pruned like any other timed-out channel.
type SSETransport struct {
	w         http.ResponseWriter
	ctrl      *http.ResponseController
	flusher   http.Flusher
	sendLimit time.Duration
}

// NewSSETransport prepares a response for event streaming. Returns an error
// when the response writer cannot flush (no streaming support).
func NewSSETransport(w http.ResponseWriter, sendLimit time.Duration) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("push: response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable proxy buffering

	return &SSETransport{
		w:         w,
		ctrl:      http.NewResponseController(w),
		flusher:   flusher,
		sendLimit: sendLimit,
	}, nil
}

// WriteEvent writes one `event:`/`data:` frame and flushes it.
func (t *SSETransport) WriteEvent(name string, data []byte) error {
	if t.sendLimit > 0 {
		if err := t.ctrl.SetWriteDeadline(time.Now().Add(t.sendLimit)); err == nil {
			defer t.ctrl.SetWriteDeadline(time.Time{})
		}
	}

	if _, err := fmt.Fprintf(t.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}
