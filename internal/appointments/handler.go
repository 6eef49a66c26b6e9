package appointments

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/go-chi/chi/v5"
)

type lister interface {
	ListUpcoming(ctx context.Context, tenantID, fromDate string, limit int) ([]Appointment, error)
}

// Handler exposes booked appointments to tenant admins.
type Handler struct {
	service lister
	logger  *logging.Logger
	now     func() time.Time
}

func NewHandler(service lister, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

// List returns upcoming appointments.
// GET /admin/tenants/{tenantID}/appointments?from=YYYY-MM-DD&limit=N
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		http.Error(w, `{"error": "tenant_id required"}`, http.StatusBadRequest)
		return
	}

	from := r.URL.Query().Get("from")
	if from == "" {
		from = h.now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", from); err != nil {
		http.Error(w, `{"error": "from must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, `{"error": "limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := h.service.ListUpcoming(r.Context(), tenantID, from, limit)
	if err != nil {
		h.logger.Error("failed to list appointments", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []Appointment{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"appointments": items})
}
