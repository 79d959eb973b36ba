package http

import (
	"net/http"

	"github.com/sbu-europe/fintalk/internal/domain"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Run(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Models lists the single model this service answers as.
func (h *Handler) Models(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.ModelList{
		Object: "list",
		Data: []domain.Model{{
			ID:      h.model,
			Object:  "model",
			Created: h.started.Unix(),
			OwnedBy: "fintalk",
		}},
	})
}
