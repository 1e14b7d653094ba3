package push

import (
	"errors"
	"log/slog"
	"sync"
)

// UserKey namespaces a user ID into a registry recipient key.
func UserKey(userID string) string { return "user:" + userID }

// RoomKey namespaces a chat-room ID into a registry recipient key.
func RoomKey(roomID string) string { return "room:" + roomID }

// Registry maps recipient keys to sets of live channels. It is explicitly
// constructed and injected (never a process-global) and safe for concurrent
// register/send/remove from any number of goroutines. The top-level map is
// a sync.Map so broadcast reads never contend with registrations on other
// recipients; each per-recipient set guards only itself.
type Registry struct {
	recipients sync.Map // recipient key → *channelSet
	logger     *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

type channelSet struct {
	mu       sync.RWMutex
	channels map[string]*Channel // channel ID → channel
	// dead marks a set that emptied and was unlinked from the registry;
	// a racing Register must not resurrect it.
	dead bool
}

// Register adds a channel under a recipient key and installs the cleanup
// hook that removes it again on any teardown, whatever the reason.
// Registration is additive; removing an
// already-removed channel is a no-op.
func (r *Registry) Register(key string, ch *Channel) *Channel {
	for {
		v, _ := r.recipients.LoadOrStore(key, &channelSet{channels: make(map[string]*Channel)})
		set := v.(*channelSet)

		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			continue // set emptied out underneath us, take a fresh one
		}
		set.channels[ch.ID()] = ch
		set.mu.Unlock()
		break
	}

	ch.OnClose(func(ch *Channel, reason CloseReason) {
		r.remove(key, ch)
		r.logger.Debug("Push channel removed",
			"recipient", key, "channel_id", ch.ID(), "reason", reason.String())
	})

	r.logger.Debug("Push channel registered", "recipient", key, "channel_id", ch.ID())
	return ch
}

func (r *Registry) remove(key string, ch *Channel) {
	v, ok := r.recipients.Load(key)
	if !ok {
		return
	}
	set := v.(*channelSet)

	set.mu.Lock()
	delete(set.channels, ch.ID())
	if len(set.channels) == 0 && !set.dead {
		set.dead = true
		r.recipients.CompareAndDelete(key, v)
	}
	set.mu.Unlock()
}

// SendTo delivers one event to every live channel registered under a key.
// Channels whose peer disconnected (or that timed out mid-send) close
// themselves and drop out of the set silently; a genuine transport error
// also prunes the channel but is surfaced to the caller. Within one
// channel, events sent by the same dispatching goroutine stay in order.
func (r *Registry) SendTo(key, event string, payload any) error {
	v, ok := r.recipients.Load(key)
	if !ok {
		return nil // no open channels: not an error, record is the source of truth
	}
	set := v.(*channelSet)

	set.mu.RLock()
	channels := make([]*Channel, 0, len(set.channels))
	for _, ch := range set.channels {
		channels = append(channels, ch)
	}
	set.mu.RUnlock()

	var failures []error
	for _, ch := range channels {
		err := ch.Send(event, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrTransportFailure):
			failures = append(failures, err)
		default:
			// Abort-class: the channel closed itself and the cleanup hook
			// already pruned it.
			r.logger.Debug("Dropped dead push channel during send",
				"recipient", key, "channel_id", ch.ID(), "error", err)
		}
	}
	return errors.Join(failures...)
}

// BroadcastAll applies SendTo semantics to every known recipient key.
// No ordering holds across recipients' channels.
func (r *Registry) BroadcastAll(event string, payload any) error {
	var failures []error
	r.recipients.Range(func(key, _ any) bool {
		if err := r.SendTo(key.(string), event, payload); err != nil {
			failures = append(failures, err)
		}
		return true
	})
	return errors.Join(failures...)
}

// Count returns the number of live channels for a key.
func (r *Registry) Count(key string) int {
	v, ok := r.recipients.Load(key)
	if !ok {
		return 0
	}
	set := v.(*channelSet)
	set.mu.RLock()
	defer set.mu.RUnlock()
	return len(set.channels)
}

// Keys returns every recipient key with at least one live channel.
func (r *Registry) Keys() []string {
	var keys []string
	r.recipients.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	return keys
}

// CloseAll completes every channel, typically at shutdown.
func (r *Registry) CloseAll() {
	r.recipients.Range(func(_, v any) bool {
		set := v.(*channelSet)
		set.mu.RLock()
		channels := make([]*Channel, 0, len(set.channels))
		for _, ch := range set.channels {
			channels = append(channels, ch)
		}
		set.mu.RUnlock()

		for _, ch := range channels {
			ch.Close(ReasonCompleted)
		}
		return true
	})
}
