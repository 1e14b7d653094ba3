package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pet-ner/AniDoc-sub000/internal/config"
	"github.com/Pet-ner/AniDoc-sub000/internal/notify"
	"github.com/Pet-ner/AniDoc-sub000/internal/push"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	handler  *Handler
	store    *notify.MemStore
	registry *push.Registry
	router   *chi.Mux
}

func newTestEnv(t *testing.T, recipients ...string) *testEnv {
	t.Helper()

	logger := testLogger()
	cfg := &config.Config{
		PushChannelTimeout: time.Minute,
		PushSendTimeout:    time.Second,
	}

	registry := push.NewRegistry(logger)
	store := notify.NewMemStore()
	dir := &notify.MemRecipientDirectory{Keys: recipients}
	dispatcher := notify.NewDispatcher(store, registry, dir, logger)
	h := New(nil, cfg, registry, dispatcher, store, logger)

	r := chi.NewRouter()
	r.Get("/subscribe", h.Subscribe)
	r.Get("/notifications", h.ListNotifications)
	r.Get("/notifications/unread-count", h.UnreadCount)
	r.Put("/notifications/read-all", h.MarkAllRead)
	r.Put("/notifications/{id}/read", h.MarkRead)
	r.Post("/internal/notify", h.NotifyInternal)
	r.Post("/internal/notify-all", h.NotifyAllInternal)
	r.Post("/internal/rooms/{roomID}/broadcast", h.RoomBroadcast)

	return &testEnv{handler: h, store: store, registry: registry, router: r}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, store *notify.MemStore, key string, n int) []notify.Notification {
	t.Helper()
	var out []notify.Notification
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		saved, err := store.Save(context.Background(), notify.Notification{
			ID:           key + "-" + string(rune('a'+i)),
			RecipientKey: key,
			Type:         notify.TypeNotice,
			Content:      "공지사항",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		out = append(out, saved)
	}
	return out
}

// --------------------------------------------------------------------------
// Notification queries
// --------------------------------------------------------------------------

func TestListNotifications(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env.store, push.UserKey("u1"), 3)
	seed(t, env.store, push.UserKey("u2"), 1)

	rec := env.do(http.MethodGet, "/notifications?userId=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Notifications []notify.Notification `json:"notifications"`
		Limit         int                   `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 3)
	assert.Equal(t, 20, body.Limit)

	// Newest first
	for i := 1; i < len(body.Notifications); i++ {
		assert.False(t, body.Notifications[i-1].CreatedAt.Before(body.Notifications[i].CreatedAt))
	}
}

func TestListNotificationsMissingRecipient(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/notifications", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnreadCount(t *testing.T) {
	env := newTestEnv(t)
	key := push.UserKey("u1")
	records := seed(t, env.store, key, 2)
	require.NoError(t, env.store.MarkRead(context.Background(), records[0].ID))

	rec := env.do(http.MethodGet, "/notifications/unread-count?userId=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Unread int `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Unread)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	records := seed(t, env.store, push.UserKey("u1"), 1)

	rec := env.do(http.MethodPut, "/notifications/"+records[0].ID+"/read", "")
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := env.store.CountUnread(context.Background(), push.UserKey("u1"))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkReadNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPut, "/notifications/nope/read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env.store, push.UserKey("u1"), 3)

	rec := env.do(http.MethodPut, "/notifications/read-all?userId=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Marked int `json:"marked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Marked)
}

// --------------------------------------------------------------------------
// Internal dispatch entry points
// --------------------------------------------------------------------------

func TestNotifyInternal(t *testing.T) {
	env := newTestEnv(t)

	body := `{"recipient":"user:u1","type":"RESERVATION","content":"예약이 승인되었습니다.","payload":{"reservationId":"r9","status":"APPROVED","message":"예약이 승인되었습니다."}}`
	rec := env.do(http.MethodPost, "/internal/notify", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var saved notify.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, notify.TypeReservation, saved.Type)

	records, err := env.store.ListForRecipient(context.Background(), "user:u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestNotifyInternalValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing recipient", `{"type":"NOTICE","content":"x"}`},
		{"missing type", `{"recipient":"user:u1","content":"x"}`},
		{"unknown type with payload", `{"recipient":"user:u1","type":"BOGUS","content":"x","payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/internal/notify", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestNotifyAllInternal(t *testing.T) {
	env := newTestEnv(t, push.UserKey("a"), push.UserKey("b"), push.UserKey("c"))

	body := `{"type":"NOTICE","content":"전체 공지"}`
	rec := env.do(http.MethodPost, "/internal/notify-all", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Recipients int `json:"recipients"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Recipients)

	for _, key := range []string{push.UserKey("a"), push.UserKey("b"), push.UserKey("c")} {
		count, err := env.store.CountUnread(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "recipient %s", key)
	}
}

type recordedEvent struct {
	name string
	data []byte
}

type stubTransport struct {
	events []recordedEvent
	err    error
}

func (s *stubTransport) WriteEvent(name string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, recordedEvent{name: name, data: data})
	return nil
}

func TestRoomBroadcast(t *testing.T) {
	env := newTestEnv(t)

	tr := &stubTransport{}
	ch := push.NewChannel(push.RoomKey("42"), tr, context.Background())
	env.registry.Register(push.RoomKey("42"), ch)

	body := `{"senderId":"u1","senderName":"김철수","message":"안녕하세요"}`
	rec := env.do(http.MethodPost, "/internal/rooms/42/broadcast", body)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, tr.events, 1)
	assert.Equal(t, "chat", tr.events[0].name)
	assert.Contains(t, string(tr.events[0].data), "안녕하세요")
}

func TestRoomBroadcastValidation(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/internal/rooms/42/broadcast", `{"senderId":"","message":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --------------------------------------------------------------------------
// Subscribe stream
// --------------------------------------------------------------------------

func TestSubscribeHandshakeAndPush(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/subscribe?userId=u1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.router.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the channel to register.
	key := push.UserKey("u1")
	require.Eventually(t, func() bool {
		return env.registry.Count(key) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, env.registry.SendTo(key, "notice", notify.NoticePayload{Title: "공지", Content: "테스트"}))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscribe handler did not return after context cancel")
	}

	body := rec.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: notice")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	// Teardown pruned the channel.
	assert.Zero(t, env.registry.Count(key))
}

func TestSubscribeMissingRecipient(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/subscribe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
