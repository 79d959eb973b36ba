package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/sbu-europe/fintalk/internal/agent"
)

const (
	DefaultModelID          = "amazon.nova-lite-v1:0"
	DefaultEmbeddingModelID = "amazon.titan-embed-text-v2:0"
	DefaultDimensions       = 1024
)

// runtimeAPI is the minimal Bedrock runtime interface required by Client.
// *bedrockruntime.Client satisfies this interface.
type runtimeAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// eventStream is the reading side of a ConverseStream response.
// *bedrockruntime.ConverseStreamEventStream satisfies it.
type eventStream interface {
	Events() <-chan types.ConverseStreamOutput
	Close() error
	Err() error
}

// Client implements agent.Model on the Bedrock Converse API and embeds text
// with a Titan embedding model.
type Client struct {
	api              runtimeAPI
	modelID          string
	embeddingModelID string
	dimensions       int

	openStream func(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (eventStream, error)
}

var _ agent.Model = (*Client)(nil)

type Option func(*Client)

func WithModelID(id string) Option {
	return func(c *Client) {
		if id = strings.TrimSpace(id); id != "" {
			c.modelID = id
		}
	}
}

func WithEmbeddingModel(id string, dimensions int) Option {
	return func(c *Client) {
		if id = strings.TrimSpace(id); id != "" {
			c.embeddingModelID = id
		}
		if dimensions > 0 {
			c.dimensions = dimensions
		}
	}
}

func New(api runtimeAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	c := &Client{
		api:              api,
		modelID:          DefaultModelID,
		embeddingModelID: DefaultEmbeddingModelID,
		dimensions:       DefaultDimensions,
	}
	c.openStream = c.sdkStream
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ModelID() string { return c.modelID }

func (c *Client) sdkStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (eventStream, error) {
	out, err := c.api.ConverseStream(ctx, in)
	if err != nil {
		return nil, err
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, errors.New("response has no event stream")
	}
	return stream, nil
}

func (c *Client) Converse(ctx context.Context, req agent.Request) (agent.Response, error) {
	msgs, err := toMessages(req.Messages)
	if err != nil {
		return agent.Response{}, err
	}
	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.modelID),
		Messages:        msgs,
		System:          systemBlocks(req.System),
		InferenceConfig: inferenceConfig(req),
		ToolConfig:      toolConfig(req.Tools),
	})
	if err != nil {
		return agent.Response{}, classify("converse", err)
	}
	if out == nil {
		return agent.Response{}, errors.New("bedrock: converse: empty response")
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return agent.Response{}, errors.New("bedrock: converse: response has no message")
	}
	m, err := fromMessage(msg.Value)
	if err != nil {
		return agent.Response{}, err
	}
	return agent.Response{Message: m, StopReason: string(out.StopReason)}, nil
}

type pendingToolUse struct {
	id    string
	name  string
	input strings.Builder
}

func (c *Client) ConverseStream(ctx context.Context, req agent.Request, onText func(string) error) (agent.Response, error) {
	msgs, err := toMessages(req.Messages)
	if err != nil {
		return agent.Response{}, err
	}
	stream, err := c.openStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(c.modelID),
		Messages:        msgs,
		System:          systemBlocks(req.System),
		InferenceConfig: inferenceConfig(req),
		ToolConfig:      toolConfig(req.Tools),
	})
	if err != nil {
		return agent.Response{}, classify("converse stream", err)
	}
	defer func() { _ = stream.Close() }()

	var (
		text  strings.Builder
		tools = map[int32]*pendingToolUse{}
		order []int32
		stop  string
	)
	events := stream.Events()
loop:
	for {
		select {
		case <-ctx.Done():
			return agent.Response{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			switch v := ev.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				start, isTool := v.Value.Start.(*types.ContentBlockStartMemberToolUse)
				if !isTool {
					continue
				}
				idx := aws.ToInt32(v.Value.ContentBlockIndex)
				tools[idx] = &pendingToolUse{id: aws.ToString(start.Value.ToolUseId), name: aws.ToString(start.Value.Name)}
				order = append(order, idx)
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch d := v.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					text.WriteString(d.Value)
					if onText != nil {
						if err := onText(d.Value); err != nil {
							return agent.Response{}, err
						}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if p := tools[aws.ToInt32(v.Value.ContentBlockIndex)]; p != nil {
						p.input.WriteString(aws.ToString(d.Value.Input))
					}
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				stop = string(v.Value.StopReason)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return agent.Response{}, classify("converse stream", err)
	}

	msg := agent.Message{Role: agent.RoleAssistant, Text: text.String()}
	for _, idx := range order {
		p := tools[idx]
		input, err := decodeToolInput(p.input.String())
		if err != nil {
			return agent.Response{}, fmt.Errorf("bedrock: tool %q input: %w", p.name, err)
		}
		msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{ID: p.id, Name: p.name, Input: input})
	}
	return agent.Response{Message: msg, StopReason: stop}, nil
}

func systemBlocks(system string) []types.SystemContentBlock {
	if strings.TrimSpace(system) == "" {
		return nil
	}
	return []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
}

func inferenceConfig(req agent.Request) *types.InferenceConfiguration {
	cfg := &types.InferenceConfiguration{Temperature: aws.Float32(float32(req.Temperature))}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	return cfg
}

// toolConfig returns nil without tools; Bedrock rejects an empty tool list.
func toolConfig(specs []agent.ToolSpec) *types.ToolConfiguration {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]types.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(s.Name),
			Description: aws.String(s.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(s.Schema)},
		}})
	}
	return &types.ToolConfiguration{Tools: tools}
}

func toMessages(msgs []agent.Message) ([]types.Message, error) {
	out := make([]types.Message, 0, len(msgs))
	for i, m := range msgs {
		var blocks []types.ContentBlock
		if m.Text != "" {
			blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Text})
		}
		for _, call := range m.ToolCalls {
			input := call.Input
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
				ToolUseId: aws.String(call.ID),
				Name:      aws.String(call.Name),
				Input:     document.NewLazyDocument(input),
			}})
		}
		for _, r := range m.ToolResults {
			blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
				ToolUseId: aws.String(r.CallID),
				Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: r.Content}},
			}})
		}
		if len(blocks) == 0 {
			return nil, fmt.Errorf("bedrock: message %d has no content", i)
		}
		role := types.ConversationRoleUser
		if m.Role == agent.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out, nil
}

func fromMessage(m types.Message) (agent.Message, error) {
	out := agent.Message{Role: agent.RoleAssistant}
	var text strings.Builder
	for _, block := range m.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			text.WriteString(v.Value)
		case *types.ContentBlockMemberToolUse:
			input := map[string]any{}
			if v.Value.Input != nil {
				if err := v.Value.Input.UnmarshalSmithyDocument(&input); err != nil {
					return agent.Message{}, fmt.Errorf("bedrock: decode tool input: %w", err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, agent.ToolCall{
				ID:    aws.ToString(v.Value.ToolUseId),
				Name:  aws.ToString(v.Value.Name),
				Input: input,
			})
		}
	}
	out.Text = text.String()
	return out, nil
}
