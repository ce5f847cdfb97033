package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking-widget/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking-widget/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-widget/internal/widget"
	"github.com/wolfman30/clinic-booking-widget/internal/widgetauth"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Widget             *widget.Handler
	Signer             *widgetauth.Signer
	Health             *handlers.HealthHandler
	WidgetTokens       *handlers.WidgetTokenHandler
	RateLimiter        *httpmiddleware.RateLimiter
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(cfg.Logger)
	}

	// Public endpoints (probes, metrics, loader script)
	r.Group(func(public chi.Router) {
		public.Get("/health", health.Live)
		public.Get("/ready", health.Ready)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Widget != nil {
			public.Get("/widget.js", cfg.Widget.WidgetJS)
		}
	})

	// Signed widget API, one tenant per slug
	if cfg.Widget != nil {
		r.Route("/api/widget/{slug}", func(api chi.Router) {
			if cfg.RateLimiter != nil {
				api.Use(cfg.RateLimiter.Middleware)
			}
			api.Use(httpmiddleware.WidgetSignature(cfg.Signer))
			api.Use(cfg.Widget.LoadTenant)

			api.Get("/availability", cfg.Widget.GetAvailability)
			api.Post("/bookings", cfg.Widget.CreateBooking)
			api.Post("/bookings/verify", cfg.Widget.VerifyPatient)
			api.Post("/bookings/modify", cfg.Widget.ModifyBooking)
			api.Post("/chat/screen", cfg.Widget.ScreenMessage)
		})
	}

	// Admin routes (protected by JWT)
	if cfg.AdminAuthSecret != "" && cfg.WidgetTokens != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Post("/widget/tokens", cfg.WidgetTokens.Issue)
		})
	}

	return r
}
