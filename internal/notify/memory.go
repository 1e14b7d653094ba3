package notify

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store for tests and local development.
type MemStore struct {
	mu   sync.RWMutex
	byID map[string]Notification
}

func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string]Notification)}
}

func (s *MemStore) Save(ctx context.Context, n Notification) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[n.ID] = n
	return n, nil
}

func (s *MemStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	n.IsRead = true
	s.byID[id] = n
	return nil
}

func (s *MemStore) MarkAllRead(ctx context.Context, recipientKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for id, n := range s.byID {
		if n.RecipientKey == recipientKey && !n.IsRead {
			n.IsRead = true
			s.byID[id] = n
			marked++
		}
	}
	return marked, nil
}

func (s *MemStore) ListForRecipient(ctx context.Context, recipientKey string, limit, offset int) ([]Notification, error) {
	s.mu.RLock()
	var out []Notification
	for _, n := range s.byID {
		if n.RecipientKey == recipientKey {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	// Newest first, matching the Postgres query.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) CountUnread(ctx context.Context, recipientKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.byID {
		if n.RecipientKey == recipientKey && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// MemRecipientDirectory serves a fixed recipient-key set in tests.
type MemRecipientDirectory struct {
	Keys []string
}

func (d *MemRecipientDirectory) AllKnownRecipientKeys(ctx context.Context) ([]string, error) {
	out := make([]string, len(d.Keys))
	copy(out, d.Keys)
	return out, nil
}
