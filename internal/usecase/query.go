package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/sbu-europe/fintalk/internal/agent"
)

const searchToolName = "search_documents"

// QueryInput is the body of the legacy POST /api/agent/query/ endpoint.
type QueryInput struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phone_number"`
	Stream      *bool  `json:"stream"`
}

func (in QueryInput) WantsStream() bool {
	return in.Stream == nil || *in.Stream
}

type Source struct {
	Tool string `json:"tool"`
	Note string `json:"note"`
}

type QueryOutput struct {
	Status    string   `json:"status"`
	Response  string   `json:"response"`
	Sources   []Source `json:"sources"`
	ToolsUsed []string `json:"tools_used"`
	Timestamp string   `json:"timestamp"`
}

func (s *CompletionService) queryInvocation(in QueryInput) (agent.Invocation, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return agent.Invocation{}, newValidationError("message", "missing_message", "message is required")
	}
	return agent.Invocation{
		Prompt:      agentPrompt(msg, strings.TrimSpace(in.PhoneNumber)),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}, nil
}

// Query answers a legacy agent query in one piece.
func (s *CompletionService) Query(ctx context.Context, in QueryInput) (QueryOutput, error) {
	inv, err := s.queryInvocation(in)
	if err != nil {
		return QueryOutput{}, err
	}
	if err := s.agent.Ready(); err != nil {
		return QueryOutput{}, s.agentFailure("query", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	res, err := s.agent.Run(ctx, inv)
	if err != nil {
		return QueryOutput{}, s.agentFailure("query", err)
	}

	sources := []Source{}
	for _, call := range res.ToolCalls {
		if call.Name != searchToolName || call.IsError || strings.HasPrefix(call.Output, "No relevant") {
			continue
		}
		sources = append(sources, Source{Tool: searchToolName, Note: "Documents retrieved from vector store"})
	}

	tools := res.ToolsUsed()
	s.logger.Info("agent query finished", "tools", tools, "sources", len(sources))
	return QueryOutput{
		Status:    "success",
		Response:  res.Text,
		Sources:   sources,
		ToolsUsed: tools,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}, nil
}

// QueryStream starts a streamed legacy agent query. The returned channels
// follow agent.Agent.Stream: tokens until closed, then at most one error,
// already classified as a usecase error.
func (s *CompletionService) QueryStream(ctx context.Context, in QueryInput) (<-chan string, <-chan error, error) {
	inv, err := s.queryInvocation(in)
	if err != nil {
		return nil, nil, err
	}
	if err := s.agent.Ready(); err != nil {
		return nil, nil, s.agentFailure("query", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.streamTimeout)
	tokens, agentErrs := s.agent.Stream(ctx, inv)

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer cancel()
		defer close(errs)
		defer close(out)
		for tok := range tokens {
			select {
			case out <- tok:
			case <-ctx.Done():
				errs <- s.agentFailure("query", ctx.Err())
				return
			}
		}
		if err := <-agentErrs; err != nil {
			errs <- s.agentFailure("query", err)
		}
	}()
	return out, errs, nil
}
