// Package handler serves the chat completions endpoint from AWS Lambda
// behind an API Gateway proxy integration. Proxy integrations cannot stream,
// so stream=true answers are rendered as one complete event-stream body.
package handler

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/sbu-europe/fintalk/internal/apierror"
	"github.com/sbu-europe/fintalk/internal/domain"
	"github.com/sbu-europe/fintalk/internal/sse"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Completer is satisfied by *usecase.CompletionService.
type Completer interface {
	Complete(ctx context.Context, req usecase.ChatCompletionRequest) (domain.CompletionResult, error)
	Stream(ctx context.Context, req usecase.ChatCompletionRequest) (*usecase.CompletionStream, error)
}

type Handler struct {
	completions Completer
	apiToken    string
	logger      *slog.Logger
}

type Option func(*Handler)

// WithAPIToken requires "Authorization: Bearer <token>" on every event.
func WithAPIToken(token string) Option {
	return func(h *Handler) {
		h.apiToken = strings.TrimSpace(token)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(completions Completer, opts ...Option) (*Handler, error) {
	if completions == nil {
		return nil, errors.New("handler: completions must not be nil")
	}
	h := &Handler{completions: completions, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle answers one API Gateway proxy event.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.logger.With("correlation_id", correlationID, "path", event.Path)

	if event.HTTPMethod != "" && event.HTTPMethod != http.MethodPost {
		_, body := apierror.Translate(&usecase.Error{Code: usecase.ErrorValidation, Reason: "method_not_allowed", Detail: "Method " + event.HTTPMethod + " is not allowed"})
		return jsonResponse(http.StatusMethodNotAllowed, body, correlationID), nil
	}
	if !h.authorized(event.Headers) {
		return h.errorResponse(log, usecase.NewAuthenticationError("invalid_api_key"), correlationID), nil
	}

	raw := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return h.errorResponse(log, usecase.InvalidBody(err), correlationID), nil
		}
		raw = decoded
	}
	var req usecase.ChatCompletionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return h.errorResponse(log, usecase.InvalidBody(err), correlationID), nil
	}

	if !req.WantsStream() {
		res, err := h.completions.Complete(ctx, req)
		if err != nil {
			return h.errorResponse(log, err, correlationID), nil
		}
		log.Info("completion served", "id", res.ID)
		return jsonResponse(http.StatusOK, res, correlationID), nil
	}

	stream, err := h.completions.Stream(ctx, req)
	if err != nil {
		return h.errorResponse(log, err, correlationID), nil
	}
	return h.bufferStream(log, stream, correlationID), nil
}

// bufferStream drains stream into an event-stream body. A failure before the
// first chunk becomes a JSON error; a later one ends the body with a single
// stream_interrupted event and no [DONE].
func (h *Handler) bufferStream(log *slog.Logger, stream *usecase.CompletionStream, correlationID string) events.APIGatewayProxyResponse {
	first, ok := <-stream.Chunks
	if !ok {
		if err := <-stream.Err; err != nil {
			return h.errorResponse(log, err, correlationID)
		}
	}

	var buf bytes.Buffer
	w := sse.NewWriter(&buf)
	if ok {
		_ = w.JSON(first)
		for chunk := range stream.Chunks {
			_ = w.JSON(chunk)
		}
	}
	if err := <-stream.Err; err != nil {
		log.Error("stream interrupted", "id", stream.ID, "err", err)
		_ = w.JSON(apierror.StreamInterrupted())
	} else {
		_ = w.Done()
	}
	log.Info("stream served", "id", stream.ID, "events", w.Events())

	hdr := http.Header{}
	sse.SetHeaders(hdr)
	hdr.Del("Connection")
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    flatten(hdr, correlationID),
		Body:       buf.String(),
	}
}

func (h *Handler) authorized(headers map[string]string) bool {
	if h.apiToken == "" {
		return true
	}
	got, ok := strings.CutPrefix(header(headers, "Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(h.apiToken)) == 1
}

func (h *Handler) errorResponse(log *slog.Logger, err error, correlationID string) events.APIGatewayProxyResponse {
	status, body := apierror.Translate(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "err", err)
	} else {
		log.Warn("request rejected", "status", status, "err", err)
	}
	return jsonResponse(status, body, correlationID)
}

func jsonResponse(status int, v any, correlationID string) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":{"message":"An unexpected error occurred.","type":"server_error","param":null,"code":null}}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}

func flatten(h http.Header, correlationID string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k := range h {
		out[k] = h.Get(k)
	}
	out[correlationHeader] = correlationID
	return out
}

// header looks a header up case-insensitively; API Gateway passes them as
// the client sent them.
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
