package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sbu-europe/fintalk/internal/agent"
	"github.com/sbu-europe/fintalk/internal/domain"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// TokenSource yields the API key. paramstore.TokenSource and StaticToken
// implement it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is an API key known at startup.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errors.New("openai: API token is empty")
	}
	return string(s), nil
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is an OpenAI-compatible chat and embeddings client. It implements
// agent.Model with function calling, so any OpenAI-compatible server can back
// the agent in place of Bedrock.
type Client struct {
	baseURL        string
	model          string
	embeddingModel string
	dimensions     int
	httpClient     *http.Client
	tokens         TokenSource

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

var _ agent.Model = (*Client)(nil)

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// WithEmbeddingModel sets the embeddings model and, when dimensions > 0,
// asks the server for vectors of that size.
func WithEmbeddingModel(model string, dimensions int) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.embeddingModel = model
		}
		c.dimensions = dimensions
	}
}

// NewClient creates a Client. The API key is resolved on the first request
// and reused for the lifetime of the process.
func NewClient(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("openai: token source must not be nil")
	}
	c := &Client{
		baseURL:        defaultBaseURL,
		model:          DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		tokens:         tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = c.tokens.Token(ctx)
		if c.keyErr != nil {
			c.keyErr = fmt.Errorf("openai: resolve API key: %w: %w", domain.ErrServiceUnavailable, c.keyErr)
		}
	})
	return c.apiKey, c.keyErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + path
	}
	return base + "/v1" + path
}

func chatURL(baseURL string) string { return endpointURL(baseURL, "/chat/completions") }

func embeddingsURL(baseURL string) string { return endpointURL(baseURL, "/embeddings") }

func (c *Client) newRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// Converse sends one chat completion request and returns the assistant turn.
func (c *Client) Converse(ctx context.Context, req agent.Request) (agent.Response, error) {
	url := chatURL(c.baseURL)
	httpReq, err := c.newRequest(ctx, url, c.chatPayload(req, false))
	if err != nil {
		return agent.Response{}, err
	}

	raw, err := c.doJSONRequest(httpReq, url)
	if err != nil {
		return agent.Response{}, classify("chat", err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return agent.Response{}, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return agent.Response{}, errors.New("openai: no choices in response")
	}
	choice := payload.Choices[0]
	msg, err := fromChatMessage(choice.Message)
	if err != nil {
		return agent.Response{}, err
	}
	return agent.Response{Message: msg, StopReason: choice.FinishReason}, nil
}

// ConverseStream sends a streaming chat completion request, calling onText
// for every content delta and assembling tool calls from their deltas.
func (c *Client) ConverseStream(ctx context.Context, req agent.Request, onText func(string) error) (agent.Response, error) {
	url := chatURL(c.baseURL)
	httpReq, err := c.newRequest(ctx, url, c.chatPayload(req, true))
	if err != nil {
		return agent.Response{}, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	res, err := c.resolvedHTTPClient().Do(httpReq)
	if err != nil {
		return agent.Response{}, classify("chat stream", err)
	}
	defer func() { _ = res.Body.Close() }()
	if err := checkStatus(res, url); err != nil {
		return agent.Response{}, classify("chat stream", err)
	}

	var (
		text   strings.Builder
		calls  = map[int]*pendingCall{}
		order  []int
		finish string
	)
	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return agent.Response{}, err
		}
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return agent.Response{}, fmt.Errorf("openai: decode stream chunk: %w", err)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				if onText != nil {
					if err := onText(choice.Delta.Content); err != nil {
						return agent.Response{}, err
					}
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				p, seen := calls[tc.Index]
				if !seen {
					p = &pendingCall{}
					calls[tc.Index] = p
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					p.id = tc.ID
				}
				if tc.Function.Name != "" {
					p.name = tc.Function.Name
				}
				p.args.WriteString(tc.Function.Arguments)
			}
			if choice.FinishReason != nil {
				finish = *choice.FinishReason
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return agent.Response{}, ctxErr
		}
		return agent.Response{}, classify("chat stream", fmt.Errorf("read stream: %w", err))
	}

	msg := agent.Message{Role: agent.RoleAssistant, Text: text.String()}
	for _, idx := range order {
		p := calls[idx]
		input, err := decodeArguments(p.args.String())
		if err != nil {
			return agent.Response{}, fmt.Errorf("openai: tool %q arguments: %w", p.name, err)
		}
		msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{ID: p.id, Name: p.name, Input: input})
	}
	return agent.Response{Message: msg, StopReason: finish}, nil
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("openai: embed: text must not be empty")
	}
	url := embeddingsURL(c.baseURL)
	httpReq, err := c.newRequest(ctx, url, embeddingRequest{
		Model:      c.embeddingModel,
		Input:      text,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, err
	}
	raw, err := c.doJSONRequest(httpReq, url)
	if err != nil {
		return nil, classify("embeddings", err)
	}
	var payload embeddingResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("openai: decode embeddings response: %w", err)
	}
	if len(payload.Data) == 0 || len(payload.Data[0].Embedding) == 0 {
		return nil, errors.New("openai: no embedding in response")
	}
	return payload.Data[0].Embedding, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if err := checkStatus(res, url); err != nil {
		return nil, err
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func checkStatus(res *http.Response, url string) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
}

// classify marks transport failures and upstream statuses that mean "try
// again later" as domain.ErrServiceUnavailable.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai: %s: %w", op, err)
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.StatusCode; {
		case code == http.StatusUnauthorized, code == http.StatusForbidden,
			code == http.StatusTooManyRequests, code >= 500:
			return fmt.Errorf("openai: %s: %w: %w", op, domain.ErrServiceUnavailable, err)
		}
		return fmt.Errorf("openai: %s: %w", op, err)
	}
	// Anything else out of http.Client.Do is a transport failure.
	return fmt.Errorf("openai: %s: %w: %w", op, domain.ErrServiceUnavailable, err)
}
