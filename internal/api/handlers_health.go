package api

import (
	"net/http"

	"github.com/fulvian/devstream/internal/storage"
)

type HealthHandler struct {
	store    storage.Storage
	provider string
}

func NewHealthHandler(store storage.Storage, provider string) *HealthHandler {
	return &HealthHandler{store: store, provider: provider}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Embedder: ServiceCheck{Status: "ok", Message: h.provider},
	}

	status, err := h.store.GetStatus(r.Context())
	switch {
	case err != nil:
		resp.Database = ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	case !status.Health.DatabaseAccessible:
		resp.Database = ServiceCheck{Status: "error", Message: "database not accessible"}
		resp.Status = "degraded"
	default:
		resp.Database = ServiceCheck{Status: "ok"}
		resp.Entries = status.TotalEntries
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
