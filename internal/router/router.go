// Package router wires the HTTP routes, middleware, services, and handlers.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/openmic/backend/internal/broker"
	"github.com/openmic/backend/internal/config"
	"github.com/openmic/backend/internal/handlers"
	"github.com/openmic/backend/internal/middleware"
	"github.com/openmic/backend/internal/services"
	"github.com/openmic/backend/internal/store"
)

// New builds the application handler.
func New(cfg *config.Config, st *store.Store, bus *broker.Broker) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	realIP := middleware.NewRealIPMiddleware(cfg.TrustedProxies)
	r.Use(realIP.Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Services
	authService := services.NewAuthService(st, cfg.JWTSecret, cfg.HostTokenDuration)
	roomService := services.NewRoomService(st, bus, cfg.SingleActiveRoomPerHost)
	queueService := services.NewQueueService(st, bus, cfg.AllowApprovedReject)
	guestNames := services.NewGuestNameService()
	catalogService := services.NewCatalogService(cfg.SpotifyClientID, cfg.SpotifyClientSecret)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	roomHandler := handlers.NewRoomHandler(roomService, guestNames)
	songHandler := handlers.NewSongHandler(queueService)
	searchHandler := handlers.NewSearchHandler(catalogService)
	sseHandler := handlers.NewSSEHandler(bus, roomService)

	// Rate limiter for search
	searchRateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	// Routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Host accounts
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Rooms
		r.Route("/rooms", func(r chi.Router) {
			// Creating a room requires a host credential
			r.With(middleware.AuthMiddleware(authService), middleware.UpdateRequestContextMiddleware).
				Post("/", roomHandler.Create)

			r.Route("/{code}", func(r chi.Router) {
				// Join by code (anonymous)
				r.Get("/", roomHandler.Get)

				// Closing is owner-only
				r.With(middleware.AuthMiddleware(authService), middleware.UpdateRequestContextMiddleware).
					Delete("/", roomHandler.Close)

				// Queue: anyone may list and request; the host view of the
				// list is selected by an optional credential.
				r.Route("/songs", func(r chi.Router) {
					r.With(middleware.OptionalAuthMiddleware(authService), middleware.UpdateRequestContextMiddleware).
						Get("/", songHandler.List)
					r.Post("/", songHandler.Submit)
				})

				// Change-event stream (anonymous)
				r.Get("/events", sseHandler.Stream)
			})
		})

		// Songs: voting is anonymous, moderation is owner-only
		r.Route("/songs/{id}", func(r chi.Router) {
			r.Post("/vote", songHandler.Vote)
			r.With(middleware.AuthMiddleware(authService), middleware.UpdateRequestContextMiddleware).
				Put("/status", songHandler.SetStatus)
		})

		// Catalog search (rate limited)
		r.With(searchRateLimiter.Middleware).Get("/catalog/search", searchHandler.Search)
	})

	return r
}
