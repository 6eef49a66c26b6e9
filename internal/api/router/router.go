// Package router wires every HTTP endpoint of the booking service.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/internal/appointments"
	"github.com/edgareichner01-sys/bot-rdv/internal/calendar"
	httpmiddleware "github.com/edgareichner01-sys/bot-rdv/internal/http/middleware"
	"github.com/edgareichner01-sys/bot-rdv/internal/tenant"
	"github.com/edgareichner01-sys/bot-rdv/internal/webchat"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger             *logging.Logger
	Chat               *webchat.Handler
	TenantHandler      *tenant.Handler
	AppointmentHandler *appointments.Handler
	CalendarOAuth      *calendar.OAuthHandler
	MetricsHandler     http.Handler
	HealthChecks       map[string]HealthCheck
	AdminAuthSecret    string
	CORSAllowedOrigins []string
	ChatLimiter        *httpmiddleware.RateLimiter
}

// New creates the chi router.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Chat != nil {
		r.With(middleware.Compress(5)).Get("/widget.js", cfg.Chat.HandleWidgetJS)
		r.Get("/demo", cfg.Chat.HandleDemo)
		r.Route("/chat", func(chat chi.Router) {
			if cfg.ChatLimiter != nil {
				chat.Use(httpmiddleware.RateLimit(cfg.ChatLimiter, httpmiddleware.ClientKey))
			}
			chat.Post("/", cfg.Chat.HandleChat)
			chat.Get("/history", cfg.Chat.HandleHistory)
			chat.Get("/ws", cfg.Chat.HandleWebSocket)
		})
	}

	// Google redirects the owner's browser here; the state token ties it to a tenant.
	if cfg.CalendarOAuth != nil {
		r.Get("/oauth/google/callback", cfg.CalendarOAuth.HandleCallback)
	}

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/tenants/{tenantID}", func(t chi.Router) {
				t.Use(httpmiddleware.RequireTenantAccess)
				if cfg.TenantHandler != nil {
					t.Get("/config", cfg.TenantHandler.GetConfig)
					t.Put("/config", cfg.TenantHandler.UpdateConfig)
				}
				if cfg.AppointmentHandler != nil {
					t.Get("/appointments", cfg.AppointmentHandler.List)
				}
				if cfg.CalendarOAuth != nil {
					t.Get("/google/connect", cfg.CalendarOAuth.HandleConnect)
					t.Get("/google/status", cfg.CalendarOAuth.HandleStatus)
					t.Delete("/google/disconnect", cfg.CalendarOAuth.HandleDisconnect)
				}
			})
		})
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				resp[name] = err.Error()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
