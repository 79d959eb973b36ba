package http

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sbu-europe/fintalk/internal/apierror"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

const CorrelationHeader = "X-Correlation-Id"

type ctxKey struct{}

// CorrelationID returns the id attached to ctx by the correlation middleware.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// correlation reuses the caller's X-Correlation-Id or mints one, and echoes
// it on the response.
func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CorrelationHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			logger.Info("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"correlation_id", CorrelationID(r.Context()),
			)
		})
	}
}

// cors answers preflight requests and sets CORS headers for allowed origins.
// "*" allows any origin.
func cors(allowed []string) func(http.Handler) http.Handler {
	anyOrigin := slices.Contains(allowed, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (anyOrigin || slices.Contains(allowed, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CorrelationHeader)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Expose-Headers", CorrelationHeader)
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerAuth rejects requests without "Authorization: Bearer <token>". An
// empty token disables the check.
func (h *Handler) bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
				err := usecase.NewAuthenticationError("invalid_api_key")
				if isOpenAIRoute(r) {
					h.writeError(w, r, err)
				} else {
					h.writeLegacyError(w, r, err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isOpenAIRoute(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/v1/") || strings.HasSuffix(r.URL.Path, "/chat/completions")
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	status, body := apierror.Translate(&usecase.Error{Code: usecase.ErrorValidation, Reason: "not_found", Detail: "Unknown endpoint " + r.URL.Path})
	if status == http.StatusBadRequest {
		status = http.StatusNotFound
	}
	writeJSON(w, status, body)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_, body := apierror.Translate(&usecase.Error{Code: usecase.ErrorValidation, Reason: "method_not_allowed", Detail: "Method " + r.Method + " is not allowed on " + r.URL.Path})
	writeJSON(w, http.StatusMethodNotAllowed, body)
}
