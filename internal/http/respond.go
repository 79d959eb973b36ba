package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sbu-europe/fintalk/internal/apierror"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err in the OpenAI error shape.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apierror.Translate(err)
	h.logFailure(r, status, err)
	writeJSON(w, status, body)
}

// writeLegacyError renders err in the FinTalk error shape.
func (h *Handler) writeLegacyError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apierror.TranslateLegacy(err)
	h.logFailure(r, status, err)
	writeJSON(w, status, body)
}

func (h *Handler) logFailure(r *http.Request, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"status", status,
		"correlation_id", CorrelationID(r.Context()),
		"err", err,
	)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return usecase.InvalidBody(err)
	}
	return nil
}

func isCanceled(err error) bool {
	var ue *usecase.Error
	return errors.As(err, &ue) && ue.Reason == "canceled"
}
