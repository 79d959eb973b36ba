package agent

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation between the agent and its model.
// A user turn carries either text or the results of the previous turn's
// tool calls.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

type ToolResult struct {
	CallID  string
	Content string
	IsError bool
}

// ToolSpec describes a tool to the model. Schema is a JSON Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Message    Message
	StopReason string
}

// Model is a chat model that supports tool use. ConverseStream calls onText
// for every text fragment as it arrives and returns the assembled turn; if
// onText returns an error the stream is abandoned and that error returned.
type Model interface {
	Converse(ctx context.Context, req Request) (Response, error)
	ConverseStream(ctx context.Context, req Request, onText func(string) error) (Response, error)
}

// Tool is an action the model may request.
type Tool interface {
	Spec() ToolSpec
	Call(ctx context.Context, input map[string]any) (string, error)
}
