// Package handler provides HTTP handlers for all API endpoints: health
// checks, the SSE subscription stream, notification queries, and the
// internal dispatch entry points used by collaborating services.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Pet-ner/AniDoc-sub000/internal/api/respond"
	"github.com/Pet-ner/AniDoc-sub000/internal/config"
	"github.com/Pet-ner/AniDoc-sub000/internal/db"
	"github.com/Pet-ner/AniDoc-sub000/internal/notify"
	"github.com/Pet-ner/AniDoc-sub000/internal/push"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool       *db.Pool
	cfg        *config.Config
	registry   *push.Registry
	dispatcher *notify.Dispatcher
	store      notify.Store
	logger     *slog.Logger
}

// New creates a Handler with shared dependencies. pool may be nil in tests;
// only the DB health check uses it directly.
func New(pool *db.Pool, cfg *config.Config, registry *push.Registry, dispatcher *notify.Dispatcher, store notify.Store, logger *slog.Logger) *Handler {
	return &Handler{
		pool:       pool,
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "AniDoc Notification API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil || h.pool.HealthCheck(r.Context()) != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// recipientKey resolves the addressed recipient from query parameters:
// either a full namespaced key, or a user/room ID convenience form.
func recipientKey(r *http.Request) string {
	q := r.URL.Query()
	if key := q.Get("recipient"); key != "" {
		return key
	}
	if id := q.Get("userId"); id != "" {
		return push.UserKey(id)
	}
	if id := q.Get("roomId"); id != "" {
		return push.RoomKey(id)
	}
	return ""
}
