package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sbu-europe/fintalk/internal/agent"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []streamToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type streamToolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id"`
	Function functionCall `json:"function"`
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) chatPayload(req agent.Request, stream bool) chatRequest {
	temp := req.Temperature
	out := chatRequest{
		Model:       c.model,
		Messages:    toChatMessages(req),
		Temperature: &temp,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	for _, spec := range req.Tools {
		out.Tools = append(out.Tools, toolDef{
			Type:     "function",
			Function: functionDef{Name: spec.Name, Description: spec.Description, Parameters: spec.Schema},
		})
	}
	return out
}

// toChatMessages flattens agent turns into chat messages; each tool result
// becomes its own "tool" message.
func toChatMessages(req agent.Request) []chatMessage {
	out := make([]chatMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		out = append(out, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case agent.RoleAssistant:
			msg := chatMessage{Role: "assistant", Content: m.Text}
			for _, call := range m.ToolCalls {
				args, err := json.Marshal(call.Input)
				if err != nil || call.Input == nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, toolCall{
					ID:       call.ID,
					Type:     "function",
					Function: functionCall{Name: call.Name, Arguments: string(args)},
				})
			}
			out = append(out, msg)
		default:
			for _, r := range m.ToolResults {
				out = append(out, chatMessage{Role: "tool", Content: r.Content, ToolCallID: r.CallID})
			}
			if m.Text != "" {
				out = append(out, chatMessage{Role: "user", Content: m.Text})
			}
		}
	}
	return out
}

func fromChatMessage(m chatMessage) (agent.Message, error) {
	out := agent.Message{Role: agent.RoleAssistant, Text: m.Content}
	for _, tc := range m.ToolCalls {
		input, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return agent.Message{}, fmt.Errorf("openai: tool %q arguments: %w", tc.Function.Name, err)
		}
		out.ToolCalls = append(out.ToolCalls, agent.ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}
	return out, nil
}

func decodeArguments(raw string) (map[string]any, error) {
	input := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return input, nil
	}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, err
	}
	return input, nil
}
