// Package push multiplexes live server-sent-event channels per recipient.
// A recipient key is an opaque namespaced identifier ("user:<id>" for a
// person's notification stream, "room:<id>" for a chat room), so the same
// registry serves both targeted notification delivery and room broadcast.
//
// All state is in-process with process lifetime: channels do not survive a
// restart, clients re-subscribe.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ErrTransportFailure marks a non-abort I/O failure while sending. It is
// the only send error surfaced to callers of SendTo/BroadcastAll; channels
// that died from client aborts or timeouts are pruned silently.
var ErrTransportFailure = errors.New("push: transport failure")

// CloseReason records why a channel was torn down.
type CloseReason int

const (
	// ReasonCompleted: server-side completion (shutdown, explicit close).
	ReasonCompleted CloseReason = iota
	// ReasonTimeout: idle or write-deadline timeout; the client must
	// re-subscribe.
	ReasonTimeout
	// ReasonTransportError: a non-abort I/O error on the wire.
	ReasonTransportError
	// ReasonClientAbort: the peer closed the connection.
	ReasonClientAbort
)

func (r CloseReason) String() string {
	switch r {
	case ReasonCompleted:
		return "completed"
	case ReasonTimeout:
		return "timeout"
	case ReasonTransportError:
		return "transport_error"
	case ReasonClientAbort:
		return "client_abort"
	default:
		return "unknown"
	}
}

// Transport writes one named event to the peer. Implementations are not
// required to be concurrency-safe; the channel serializes writes.
type Transport interface {
	WriteEvent(name string, data []byte) error
}

// Observer is a lifecycle hook invoked synchronously by the channel's own
// teardown path, exactly once, whatever the teardown reason.
type Observer func(ch *Channel, reason CloseReason)

// Channel is one live push connection to a single client. Sends are
// serialized per channel, giving FIFO order with respect to calls made by
// the same dispatching goroutine.
type Channel struct {
	id        string
	recipient string
	createdAt time.Time

	mu           sync.Mutex
	tr           Transport
	ctx          context.Context // peer liveness; nil means always live
	closed       bool
	reason       CloseReason
	observers    []Observer
	lastActivity time.Time

	done chan struct{}
}

// NewChannel wraps a transport into a channel addressed to one recipient
// key. ctx is the peer's request context, used to classify write failures
// after a client disconnect as aborts; observers run synchronously on
// teardown in registration order.
func NewChannel(recipient string, tr Transport, ctx context.Context, observers ...Observer) *Channel {
	now := time.Now()
	return &Channel{
		id:           uuid.NewString(),
		recipient:    recipient,
		createdAt:    now,
		tr:           tr,
		ctx:          ctx,
		observers:    observers,
		lastActivity: now,
		done:         make(chan struct{}),
	}
}

func (c *Channel) ID() string        { return c.id }
func (c *Channel) Recipient() string { return c.recipient }

// Done is closed when the channel has been torn down; the serving handler
// waits on it to end the HTTP response.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Reason reports the teardown reason once Done is closed.
func (c *Channel) Reason() CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// LastActivity is the time of the last successful write.
func (c *Channel) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Send delivers one named event with a JSON payload. A peer-closed
// connection tears the channel down and returns an abort-class error; any
// other I/O failure tears it down and returns ErrTransportFailure.
// Sending on an already-dead channel reports the original teardown class.
func (c *Channel) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal %s payload: %v", ErrTransportFailure, event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		if c.reason == ReasonTransportError {
			return fmt.Errorf("%w: channel %s already failed", ErrTransportFailure, c.id)
		}
		return fmt.Errorf("push: channel %s closed (%s)", c.id, c.reason)
	}

	if err := c.tr.WriteEvent(event, data); err != nil {
		reason := classifyWriteError(err, c.ctx)
		c.closeLocked(reason)
		if reason == ReasonTransportError {
			return fmt.Errorf("%w: write %s: %v", ErrTransportFailure, event, err)
		}
		return fmt.Errorf("push: channel %s closed (%s): %v", c.id, reason, err)
	}

	c.lastActivity = time.Now()
	return nil
}

// OnClose registers an additional lifecycle observer. If the channel is
// already closed the observer runs immediately with the teardown reason, so
// late registration cannot leak a dead channel.
func (c *Channel) OnClose(obs Observer) {
	c.mu.Lock()
	if c.closed {
		reason := c.reason
		c.mu.Unlock()
		obs(c, reason)
		return
	}
	c.observers = append(c.observers, obs)
	c.mu.Unlock()
}

// Close tears the channel down with the given reason. Idempotent: only the
// first call runs the observers, later calls are no-ops.
func (c *Channel) Close(reason CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(reason)
}

func (c *Channel) closeLocked(reason CloseReason) {
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
	close(c.done)
	for _, obs := range c.observers {
		obs(c, reason)
	}
}

// classifyWriteError separates client-abort-class failures (peer went away,
// silently pruned) and deadline expiries (treated like idle timeout) from
// genuine transport errors (surfaced to the dispatching caller).
func classifyWriteError(err error, ctx context.Context) CloseReason {
	if ctx != nil && ctx.Err() != nil {
		return ReasonClientAbort
	}
	if errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, context.Canceled) {
		return ReasonClientAbort
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransportError
}
