package calendar

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

const oauthStateTTL = 10 * time.Minute

// NewOAuthConfig builds the OAuth client used to link tenant calendars.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope},
	}
}

// OAuthHandler handles the Google consent flow that links a tenant calendar.
type OAuthHandler struct {
	oauth  *oauth2.Config
	tokens TokenStore
	redis  *redis.Client
	logger *logging.Logger
}

// NewOAuthHandler creates the handler. CSRF state lives in redis for 10 minutes.
func NewOAuthHandler(oauthCfg *oauth2.Config, tokens TokenStore, redisClient *redis.Client, logger *logging.Logger) *OAuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OAuthHandler{
		oauth:  oauthCfg,
		tokens: tokens,
		redis:  redisClient,
		logger: logger,
	}
}

func stateKey(state string) string {
	return fmt.Sprintf("oauth:google:state:%s", state)
}

// HandleConnect returns the Google consent URL for a tenant.
// GET /admin/tenants/{tenantID}/google/connect
func (h *OAuthHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		http.Error(w, `{"error": "tenant_id required"}`, http.StatusBadRequest)
		return
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		h.logger.Error("failed to generate state", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(stateBytes)

	if err := h.redis.Set(r.Context(), stateKey(state), tenantID, oauthStateTTL).Err(); err != nil {
		h.logger.Error("failed to store oauth state", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	authURL := h.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	h.logger.Info("initiating google oauth", "tenant_id", tenantID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"auth_url": authURL})
}

// HandleCallback exchanges the authorization code and stores the token.
// GET /oauth/google/callback?code=...&state=...
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("google oauth denied", "error", errParam)
		http.Error(w, `{"error": "authorization denied"}`, http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, `{"error": "missing code or state"}`, http.StatusBadRequest)
		return
	}

	tenantID, err := h.redis.GetDel(r.Context(), stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		http.Error(w, `{"error": "invalid or expired state"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("failed to read oauth state", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("google token exchange failed", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "token exchange failed"}`, http.StatusBadGateway)
		return
	}

	if err := h.tokens.Save(r.Context(), tenantID, tok); err != nil {
		h.logger.Error("save google credentials failed", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "failed to save credentials"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("google calendar connected", "tenant_id", tenantID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"tenant_id": tenantID,
		"message":   "Google Calendar connected",
	})
}

// HandleStatus reports whether the tenant has a linked calendar.
// GET /admin/tenants/{tenantID}/google/status
func (h *OAuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	_, err := h.tokens.Load(r.Context(), tenantID)
	connected := err == nil
	if err != nil && !errors.Is(err, ErrNotConnected) {
		h.logger.Error("failed to load google credentials", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"tenant_id": tenantID, "connected": connected})
}

// HandleDisconnect removes the stored token.
// DELETE /admin/tenants/{tenantID}/google
func (h *OAuthHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := h.tokens.Delete(r.Context(), tenantID); err != nil {
		h.logger.Error("failed to delete google credentials", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	h.logger.Info("google calendar disconnected", "tenant_id", tenantID)
	w.WriteHeader(http.StatusNoContent)
}
