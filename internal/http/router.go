package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type RouterConfig struct {
	// APIToken enables bearer authentication when non-empty.
	APIToken       string
	AllowedOrigins []string
	Logger         *slog.Logger
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	r.HandleFunc("/api/health/", h.Health).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(h.bearerAuth(cfg.APIToken))
	api.HandleFunc("/api/documents/upload/", h.UploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/api/agent/query/", h.AgentQuery).Methods(http.MethodPost)
	api.HandleFunc("/api/agent/query/chat/completions", h.ChatCompletions).Methods(http.MethodPost)
	api.HandleFunc("/v1/chat/completions", h.ChatCompletions).Methods(http.MethodPost)
	api.HandleFunc("/v1/models", h.Models).Methods(http.MethodGet)

	return correlation(requestLogger(logger)(cors(cfg.AllowedOrigins)(r)))
}
