package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the Titan embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("bedrock: embed: text must not be empty")
	}
	body, err := json.Marshal(titanRequest{InputText: text, Dimensions: c.dimensions, Normalize: true})
	if err != nil {
		return nil, fmt.Errorf("bedrock: embed: marshal request: %w", err)
	}
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.embeddingModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, classify("embed", err)
	}
	var payload titanResponse
	if err := json.Unmarshal(out.Body, &payload); err != nil {
		return nil, fmt.Errorf("bedrock: embed: decode response: %w", err)
	}
	if len(payload.Embedding) == 0 {
		return nil, errors.New("bedrock: embed: empty embedding")
	}
	if c.dimensions > 0 && len(payload.Embedding) != c.dimensions {
		return nil, fmt.Errorf("bedrock: embed: got %d dimensions, want %d", len(payload.Embedding), c.dimensions)
	}
	return payload.Embedding, nil
}
