package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/Pet-ner/AniDoc-sub000/internal/api/handler"
	"github.com/Pet-ner/AniDoc-sub000/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip; skips text/event-stream

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "Cache-Control", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: true, // SSE clients send cookies for session auth
	})
	r.Use(c.Handler)

	// Rate limiting (subscribe streams are exempt, see RateLimitMiddleware)
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Live push stream
		r.Get("/subscribe", h.Subscribe)

		// Notification queries
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.UnreadCount)
			r.Put("/read-all", h.MarkAllRead)
			r.Put("/{id}/read", h.MarkRead)
		})

		// Dispatch entry points for collaborating services
		r.Route("/internal", func(r chi.Router) {
			r.Post("/notify", h.NotifyInternal)
			r.Post("/notify-all", h.NotifyAllInternal)
			r.Post("/rooms/{roomID}/broadcast", h.RoomBroadcast)
		})
	})

	return r
}
