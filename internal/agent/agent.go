package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sbu-europe/fintalk/internal/domain"
)

var (
	// ErrNotReady is returned when the agent was never started, has been
	// closed, or could not be built at all.
	ErrNotReady = errors.New("agent: not ready")
	// ErrUnavailable marks model failures caused by the upstream service
	// being unreachable or refusing our requests.
	ErrUnavailable = domain.ErrServiceUnavailable
	// ErrMaxIterations is returned when the model keeps requesting tools.
	ErrMaxIterations = errors.New("agent: max iterations reached")
)

const (
	DefaultMaxIterations = 10
	DefaultMaxTokens     = 2048
)

// Invocation is a single prompt handed to the agent.
type Invocation struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ToolUse records one tool call made while answering.
type ToolUse struct {
	Name    string
	Output  string
	IsError bool
}

type Result struct {
	Text      string
	ToolCalls []ToolUse
}

// ToolsUsed returns the distinct tool names in call order.
func (r Result) ToolsUsed() []string {
	seen := make(map[string]bool, len(r.ToolCalls))
	names := make([]string, 0, len(r.ToolCalls))
	for _, c := range r.ToolCalls {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	return names
}

type state int

const (
	stateNew state = iota
	stateRunning
	stateClosed
	stateDisabled
)

// Agent answers prompts by looping over a Model, executing the tools it
// requests until it produces a final answer.
type Agent struct {
	model         Model
	tools         map[string]Tool
	specs         []ToolSpec
	system        string
	maxIterations int
	logger        *slog.Logger

	mu    sync.RWMutex
	state state
	cause error
}

type Option func(*Agent)

func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(prompt) != "" {
			a.system = prompt
		}
	}
}

func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New builds an agent. It must be started before use.
func New(model Model, tools []Tool, opts ...Option) (*Agent, error) {
	if model == nil {
		return nil, errors.New("agent: model must not be nil")
	}
	a := &Agent{
		model:         model,
		tools:         make(map[string]Tool, len(tools)),
		system:        defaultSystemPrompt,
		maxIterations: DefaultMaxIterations,
		logger:        slog.Default(),
	}
	for _, t := range tools {
		if t == nil {
			return nil, errors.New("agent: tool must not be nil")
		}
		spec := t.Spec()
		if _, dup := a.tools[spec.Name]; dup {
			return nil, fmt.Errorf("agent: duplicate tool %q", spec.Name)
		}
		a.tools[spec.Name] = t
		a.specs = append(a.specs, spec)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Disabled returns an agent that reports ErrNotReady with the given cause.
// Processes whose model could not be configured serve requests with it so
// callers get a clean "unavailable" instead of a crash.
func Disabled(cause error) *Agent {
	return &Agent{state: stateDisabled, cause: cause, logger: slog.Default()}
}

func (a *Agent) Start(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateDisabled:
		return a.notReady()
	case stateClosed:
		return errors.New("agent: already closed")
	}
	a.state = stateRunning
	a.logger.Info("agent started", "tools", len(a.specs), "max_iterations", a.maxIterations)
	return nil
}

func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateRunning {
		a.state = stateClosed
	}
	return nil
}

// Ready returns nil when the agent accepts invocations.
func (a *Agent) Ready() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != stateRunning {
		return a.notReady()
	}
	return nil
}

func (a *Agent) notReady() error {
	if a.cause != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, a.cause)
	}
	return ErrNotReady
}

// Run answers a prompt and blocks until the answer is complete.
func (a *Agent) Run(ctx context.Context, in Invocation) (Result, error) {
	if err := a.Ready(); err != nil {
		return Result{}, err
	}
	return a.loop(ctx, in, nil)
}

// Stream answers a prompt, sending text fragments as the model produces
// them. The token channel is closed when the answer is complete; a failure
// is then available on the error channel, which is closed right after.
// Cancelling ctx stops the upstream stream.
func (a *Agent) Stream(ctx context.Context, in Invocation) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(tokens)

		if err := a.Ready(); err != nil {
			errs <- err
			return
		}
		_, err := a.loop(ctx, in, func(s string) error {
			if s == "" {
				return nil
			}
			select {
			case tokens <- s:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- err
		}
	}()

	return tokens, errs
}

func (a *Agent) loop(ctx context.Context, in Invocation, onText func(string) error) (Result, error) {
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	req := Request{
		System:      a.system,
		Messages:    []Message{{Role: RoleUser, Text: in.Prompt}},
		Tools:       a.specs,
		MaxTokens:   maxTokens,
		Temperature: in.Temperature,
	}

	var res Result
	for i := 0; i < a.maxIterations; i++ {
		var resp Response
		var err error
		if onText != nil {
			resp, err = a.model.ConverseStream(ctx, req, onText)
		} else {
			resp, err = a.model.Converse(ctx, req)
		}
		if err != nil {
			return res, fmt.Errorf("agent: model call: %w", err)
		}

		resp.Message.Role = RoleAssistant
		req.Messages = append(req.Messages, resp.Message)
		if len(resp.Message.ToolCalls) == 0 {
			res.Text = strings.TrimSpace(resp.Message.Text)
			return res, nil
		}

		results := make([]ToolResult, 0, len(resp.Message.ToolCalls))
		for _, call := range resp.Message.ToolCalls {
			out, isErr := a.callTool(ctx, call)
			results = append(results, ToolResult{CallID: call.ID, Content: out, IsError: isErr})
			res.ToolCalls = append(res.ToolCalls, ToolUse{Name: call.Name, Output: out, IsError: isErr})
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		req.Messages = append(req.Messages, Message{Role: RoleUser, ToolResults: results})
	}

	a.logger.Warn("agent gave up", "iterations", a.maxIterations, "tool_calls", len(res.ToolCalls))
	return res, ErrMaxIterations
}

func (a *Agent) callTool(ctx context.Context, call ToolCall) (string, bool) {
	tool, ok := a.tools[call.Name]
	if !ok {
		a.logger.Warn("model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf("Error: unknown tool %q", call.Name), true
	}
	input := call.Input
	if input == nil {
		input = map[string]any{}
	}
	out, err := tool.Call(ctx, input)
	if err != nil {
		a.logger.Error("tool call failed", "tool", call.Name, "err", err)
		return "Error: " + err.Error(), true
	}
	a.logger.Debug("tool call completed", "tool", call.Name)
	return out, false
}
