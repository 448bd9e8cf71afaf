package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/kiwari-pos/console/internal/backend"
	"github.com/kiwari-pos/console/internal/config"
	"github.com/kiwari-pos/console/internal/handler"
	mw "github.com/kiwari-pos/console/internal/middleware"
	"github.com/kiwari-pos/console/internal/service"
	"github.com/kiwari-pos/console/internal/ws"
)

// New creates a Chi router with all console routes wired up. client is the
// unauthenticated backend client; per-session copies carry the admin's token.
func New(cfg *config.Config, client *backend.Client, sessions *service.Registry, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(
		client,
		sessions,
		func(token string) service.Backend { return client.WithToken(token) },
		hub,
		cfg.JWTSecret,
	)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	live := func(id uuid.UUID) bool {
		_, ok := sessions.Get(id)
		return ok
	}
	r.Method(http.MethodGet, "/ws", ws.NewHandler(hub, cfg.JWTSecret, live, cfg.AllowedOrigins))

	// Protected routes (require a token naming a live session)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireSession(sessions))

		r.Post("/auth/logout", authHandler.Logout)

		dashboardHandler := handler.NewDashboardHandler()
		r.Route("/dashboard", dashboardHandler.RegisterRoutes)

		tableHandler := handler.NewTableHandler(
			func(token string) handler.TableAPI { return client.WithToken(token) },
			cfg.PublicMenuURL,
		)
		r.Route("/tables", tableHandler.RegisterRoutes)

		menuHandler := handler.NewMenuHandler(
			func(token string) handler.MenuAPI { return client.WithToken(token) },
		)
		r.Route("/menu", menuHandler.RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}
