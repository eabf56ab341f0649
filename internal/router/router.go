package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"culturehub-api/internal/handler"
	"culturehub-api/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	SiteHandler    *handler.SiteHandler
	TradeHandler   *handler.TradeHandler
	ReviewHandler  *handler.ReviewHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
	AdminKey       string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token", "X-Admin-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// PUBLIC routes (no auth required)
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}
		if cfg.AuthHandler != nil {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}
		if cfg.SiteHandler != nil {
			r.Route("/sites", func(r chi.Router) {
				r.Get("/", cfg.SiteHandler.List)
				r.Get("/nearby", cfg.SiteHandler.Nearby)
				r.Get("/{id}", cfg.SiteHandler.Get)
			})
		}
		if cfg.ReviewHandler != nil {
			r.Get("/reviews/site/{siteId}", cfg.ReviewHandler.ListBySite)
		}

		// Admin endpoints use their own key instead of a session
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminKey(cfg.AdminKey))
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Post("/trade-codes/purge", cfg.AdminHandler.PurgeTradeCodes)
			})
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.AuthHandler != nil {
				r.Post("/auth/logout", cfg.AuthHandler.Logout)
			}

			if cfg.UserHandler != nil {
				r.Route("/users", func(r chi.Router) {
					r.Get("/me", cfg.UserHandler.Me)
					r.Put("/profile", cfg.UserHandler.UpdateProfile)
					r.Put("/location", cfg.UserHandler.UpdateLocation)
					r.Get("/visited-sites", cfg.UserHandler.VisitedSites)
					r.Get("/favorites", cfg.UserHandler.Favorites)
					r.Post("/favorites", cfg.UserHandler.AddFavorite)
					r.Delete("/favorites/{siteId}", cfg.UserHandler.RemoveFavorite)
					r.Post("/catch", cfg.UserHandler.Catch)
					r.Get("/inventory", cfg.UserHandler.Inventory)
				})
			}

			if cfg.TradeHandler != nil {
				r.Post("/trade-codes", cfg.TradeHandler.GenerateCode)
				r.Post("/trade-codes/lookup", cfg.TradeHandler.LookupCode)
				r.Post("/trades", cfg.TradeHandler.Execute)
				r.Get("/trades", cfg.TradeHandler.History)
			}

			if cfg.ReviewHandler != nil {
				r.Post("/reviews", cfg.ReviewHandler.Create)
				r.Put("/reviews/{id}", cfg.ReviewHandler.Update)
				r.Delete("/reviews/{id}", cfg.ReviewHandler.Delete)
			}
		})
	})

	return r
}
