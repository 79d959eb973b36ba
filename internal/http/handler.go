package http

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sbu-europe/fintalk/internal/domain"
	"github.com/sbu-europe/fintalk/internal/healthcheck"
	"github.com/sbu-europe/fintalk/internal/usecase"
)

// Completer is the chat surface served by the handlers.
// *usecase.CompletionService satisfies it.
type Completer interface {
	Complete(ctx context.Context, req usecase.ChatCompletionRequest) (domain.CompletionResult, error)
	Stream(ctx context.Context, req usecase.ChatCompletionRequest) (*usecase.CompletionStream, error)
	Query(ctx context.Context, in usecase.QueryInput) (usecase.QueryOutput, error)
	QueryStream(ctx context.Context, in usecase.QueryInput) (<-chan string, <-chan error, error)
}

type Uploader interface {
	Upload(ctx context.Context, in usecase.UploadInput) (usecase.UploadOutput, error)
	MaxBytes() int64
}

type HealthReporter interface {
	Run(ctx context.Context) healthcheck.Report
}

type Handler struct {
	completions Completer
	documents   Uploader
	health      HealthReporter
	model       string
	started     time.Time
	logger      *slog.Logger
}

type HandlerOption func(*Handler)

// WithModelID sets the model listed by /v1/models.
func WithModelID(id string) HandlerOption {
	return func(h *Handler) {
		if id != "" {
			h.model = id
		}
	}
}

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(completions Completer, documents Uploader, health HealthReporter, opts ...HandlerOption) (*Handler, error) {
	if completions == nil {
		return nil, errors.New("http: completer must not be nil")
	}
	if documents == nil {
		return nil, errors.New("http: uploader must not be nil")
	}
	if health == nil {
		return nil, errors.New("http: health reporter must not be nil")
	}
	h := &Handler{
		completions: completions,
		documents:   documents,
		health:      health,
		model:       usecase.DefaultModel,
		started:     time.Now(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}
