package http

import (
	"context"
	"net/http"

	"github.com/sbu-europe/fintalk/internal/apierror"
	"github.com/sbu-europe/fintalk/internal/sse"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

// ChatCompletions serves the OpenAI-compatible chat completions endpoint.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req usecase.ChatCompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if !req.WantsStream() {
		res, err := h.completions.Complete(r.Context(), req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := h.completions.Stream(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.relay(w, r, stream)
}

// relay forwards chunks as SSE events. The response is committed only once
// the first chunk exists, so a stream that fails before producing anything
// still gets a regular JSON error and status code.
func (h *Handler) relay(w http.ResponseWriter, r *http.Request, stream *usecase.CompletionStream) {
	first, ok := <-stream.Chunks
	if !ok {
		if err := <-stream.Err; err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	sse.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	events := sse.NewWriter(w)

	if ok {
		if err := events.JSON(first); err != nil {
			h.logger.Info("client went away", "id", stream.ID, "err", err)
			return
		}
		for chunk := range stream.Chunks {
			if err := events.JSON(chunk); err != nil {
				h.logger.Info("client went away", "id", stream.ID, "err", err)
				return
			}
		}
	}

	if err := <-stream.Err; err != nil {
		if isCanceled(err) {
			return
		}
		h.logFailure(r, http.StatusInternalServerError, err)
		_ = events.JSON(apierror.StreamInterrupted())
		return
	}
	_ = events.Done()
}
