package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sbu-europe/fintalk/internal/agent"
	"github.com/sbu-europe/fintalk/internal/domain"
)

const (
	defaultRunTimeout    = 60 * time.Second
	defaultStreamTimeout = 120 * time.Second
)

// AgentInvoker is the agent surface consumed by the completion use cases.
// *agent.Agent satisfies it.
type AgentInvoker interface {
	Ready() error
	Run(ctx context.Context, in agent.Invocation) (agent.Result, error)
	Stream(ctx context.Context, in agent.Invocation) (<-chan string, <-chan error)
}

// CompletionStream is a chat completion being produced. Chunks is closed
// when the stream ends; Err then yields the failure, if any. All chunks
// share ID and Created.
type CompletionStream struct {
	ID      string
	Created int64
	Model   string
	Chunks  <-chan domain.CompletionChunk
	Err     <-chan error
}

// CompletionService implements the OpenAI-compatible chat completion flow
// and the legacy agent query flow on top of one agent.
type CompletionService struct {
	agent         AgentInvoker
	validate      *validator.Validate
	logger        *slog.Logger
	runTimeout    time.Duration
	streamTimeout time.Duration
	now           func() time.Time
}

type ServiceOption func(*CompletionService)

func WithTimeouts(run, stream time.Duration) ServiceOption {
	return func(s *CompletionService) {
		if run > 0 {
			s.runTimeout = run
		}
		if stream > 0 {
			s.streamTimeout = stream
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *CompletionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewCompletionService(a AgentInvoker, opts ...ServiceOption) (*CompletionService, error) {
	if a == nil {
		return nil, errors.New("usecase: agent must not be nil")
	}
	s := &CompletionService{
		agent:         a,
		validate:      newValidator(),
		logger:        slog.Default(),
		runTimeout:    defaultRunTimeout,
		streamTimeout: defaultStreamTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Complete answers a chat completion request in one piece.
func (s *CompletionService) Complete(ctx context.Context, req ChatCompletionRequest) (domain.CompletionResult, error) {
	q, inv, f, err := s.prepare(req)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	if err := s.agent.Ready(); err != nil {
		return domain.CompletionResult{}, s.agentFailure(f.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	res, err := s.agent.Run(ctx, inv)
	if err != nil {
		return domain.CompletionResult{}, s.agentFailure(f.ID, err)
	}

	out := f.Result(res.Text, q.PromptText)
	s.logger.Info("chat completion finished",
		"id", f.ID,
		"model", f.Model,
		"tools", res.ToolsUsed(),
		"prompt_tokens", out.Usage.PromptTokens,
		"completion_tokens", out.Usage.CompletionTokens,
	)
	return out, nil
}

// Stream starts a streamed chat completion. Validation and readiness
// failures are returned synchronously; failures after that arrive on the
// stream's Err channel. Cancelling ctx abandons the agent stream.
func (s *CompletionService) Stream(ctx context.Context, req ChatCompletionRequest) (*CompletionStream, error) {
	_, inv, f, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := s.agent.Ready(); err != nil {
		return nil, s.agentFailure(f.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.streamTimeout)
	tokens, agentErrs := s.agent.Stream(ctx, inv)

	chunks := make(chan domain.CompletionChunk)
	errs := make(chan error, 1)

	go func() {
		defer cancel()
		defer close(errs)
		defer close(chunks)

		send := func(c domain.CompletionChunk) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		n := 0
		for tok := range tokens {
			if !send(f.Chunk(tok)) {
				errs <- s.agentFailure(f.ID, ctx.Err())
				return
			}
			n++
		}
		if err := <-agentErrs; err != nil {
			errs <- s.agentFailure(f.ID, err)
			return
		}
		if !send(f.StopChunk()) {
			errs <- s.agentFailure(f.ID, ctx.Err())
			return
		}
		s.logger.Info("chat completion stream finished", "id", f.ID, "model", f.Model, "chunks", n)
	}()

	return &CompletionStream{
		ID:      f.ID,
		Created: f.Created,
		Model:   f.Model,
		Chunks:  chunks,
		Err:     errs,
	}, nil
}

func (s *CompletionService) prepare(req ChatCompletionRequest) (NormalizedQuery, agent.Invocation, Formatter, error) {
	if err := s.validate.Struct(req); err != nil {
		return NormalizedQuery{}, agent.Invocation{}, Formatter{}, validationFailure(err)
	}
	q, err := NormalizeMessages(req.Messages)
	if err != nil {
		return NormalizedQuery{}, agent.Invocation{}, Formatter{}, err
	}
	inv := agent.Invocation{
		Prompt:      agentPrompt(q.PromptText, q.PhoneNumber),
		Temperature: req.temperature(),
		MaxTokens:   req.maxTokens(),
	}
	return q, inv, NewFormatter(req.model(), s.now()), nil
}

// agentFailure classifies an agent error and logs its details, which never
// reach the caller.
func (s *CompletionService) agentFailure(id string, err error) *Error {
	var out *Error
	switch {
	case errors.Is(err, agent.ErrNotReady):
		out = newError(ErrorServiceUnavailable, "agent_not_ready", err)
	case errors.Is(err, agent.ErrUnavailable):
		out = newError(ErrorServiceUnavailable, "agent_unreachable", err)
	case errors.Is(err, context.DeadlineExceeded):
		out = newError(ErrorAgentExecution, "agent_timeout", err)
	case errors.Is(err, context.Canceled):
		out = newError(ErrorAgentExecution, "canceled", err)
	default:
		out = newError(ErrorAgentExecution, "agent_failed", err)
	}
	if out.Reason == "canceled" {
		s.logger.Info("agent invocation canceled", "id", id)
	} else {
		s.logger.Error("agent invocation failed", "id", id, "reason", out.Reason, "err", err)
	}
	return out
}
