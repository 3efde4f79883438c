package handlers

import (
	"net/http"

	"promoreel/internal/httpkit"
)

// Health performs a health check of the service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"ok":      true,
		"service": "promoreel-api",
		"version": "0.1.0",
	}

	if r.URL.Query().Get("deep") == "true" {
		health["checks"] = map[string]any{
			"storage": h.checkStorage(),
		}
	}

	httpkit.WriteJSON(w, 200, health)
}

func (h *Handler) checkStorage() map[string]any {
	if h.mirror == nil {
		return map[string]any{
			"status":   "ok",
			"provider": "none",
		}
	}
	return map[string]any{
		"status":   "ok",
		"provider": h.mirror.Provider(),
	}
}
