package http

import (
	"context"
	"net/http"

	"github.com/sbu-europe/fintalk/internal/apierror"
	"github.com/sbu-europe/fintalk/internal/sse"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

type queryEvent struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

// AgentQuery serves the FinTalk agent query endpoint.
func (h *Handler) AgentQuery(w http.ResponseWriter, r *http.Request) {
	var in usecase.QueryInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeLegacyError(w, r, err)
		return
	}

	if !in.WantsStream() {
		out, err := h.completions.Query(r.Context(), in)
		if err != nil {
			h.writeLegacyError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	tokens, errs, err := h.completions.QueryStream(ctx, in)
	if err != nil {
		status, body := apierror.TranslateLegacy(err)
		if status == http.StatusBadRequest {
			h.writeLegacyError(w, r, err)
			return
		}
		h.logFailure(r, status, err)
		sse.SetHeaders(w.Header())
		w.WriteHeader(status)
		_ = sse.NewWriter(w).JSON(queryEvent{Type: "error", Content: body})
		return
	}

	sse.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	events := sse.NewWriter(w)
	for tok := range tokens {
		if err := events.JSON(queryEvent{Type: "token", Content: tok}); err != nil {
			h.logger.Info("client went away", "err", err)
			return
		}
	}
	if err := <-errs; err != nil {
		if isCanceled(err) {
			return
		}
		_, body := apierror.TranslateLegacy(err)
		h.logFailure(r, http.StatusInternalServerError, err)
		_ = events.JSON(queryEvent{Type: "error", Content: body.Error})
		return
	}
	_ = events.JSON(queryEvent{Type: "done"})
}
