package tenant

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/go-chi/chi/v5"
)

type configStore interface {
	Get(ctx context.Context, tenantID string) (*Config, error)
	Set(ctx context.Context, cfg *Config) error
}

// Handler provides HTTP endpoints for tenant configuration management.
type Handler struct {
	store  configStore
	logger *logging.Logger
}

// NewHandler creates a new tenant config HTTP handler.
func NewHandler(store configStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// GetConfig returns the configuration for a tenant.
// GET /admin/tenants/{tenantID}/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		http.Error(w, `{"error": "tenant_id required"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to get tenant config", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		h.logger.Error("failed to encode tenant config", "tenant_id", tenantID, "error", err)
	}
}

// UpdateConfigRequest is the request body for updating tenant config.
type UpdateConfigRequest struct {
	Name               string            `json:"name,omitempty"`
	Timezone           string            `json:"timezone,omitempty"`
	AppointmentMinutes *int              `json:"appointment_minutes,omitempty"`
	BusinessHours      *BusinessHours    `json:"business_hours,omitempty"`
	FAQ                map[string]string `json:"faq,omitempty"`
	NotifyEmail        *string           `json:"notify_email,omitempty"`
	CalendarID         string            `json:"calendar_id,omitempty"`
}

// UpdateConfig applies a partial update to the tenant configuration.
// PUT /admin/tenants/{tenantID}/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		http.Error(w, `{"error": "tenant_id required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to get tenant config", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	if req.Name != "" {
		cfg.Name = req.Name
	}
	if req.Timezone != "" {
		cfg.Timezone = req.Timezone
	}
	if req.AppointmentMinutes != nil {
		cfg.AppointmentMinutes = *req.AppointmentMinutes
	}
	if req.BusinessHours != nil {
		cfg.BusinessHours = *req.BusinessHours
	}
	if req.FAQ != nil {
		cfg.FAQ = req.FAQ
	}
	if req.NotifyEmail != nil {
		cfg.NotifyEmail = *req.NotifyEmail
	}
	if req.CalendarID != "" {
		cfg.CalendarID = req.CalendarID
	}

	if err := cfg.Validate(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	if err := h.store.Set(r.Context(), cfg); err != nil {
		h.logger.Error("failed to save tenant config", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "failed to save config"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("tenant config updated", "tenant_id", tenantID, "name", cfg.Name)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		h.logger.Error("failed to encode tenant config", "tenant_id", tenantID, "error", err)
	}
}
