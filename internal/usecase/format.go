package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"time"
	"unicode/utf8"

	"github.com/sbu-europe/fintalk/internal/domain"
)

const completionIDPrefix = "chatcmpl-"

// newCompletionID returns the prefix plus 24 hex digits of randomness.
var newCompletionID = func() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return completionIDPrefix + hex.EncodeToString(b[:])
}

// Formatter renders agent output in the chat completion wire format. One
// Formatter is created per request so that every chunk of a stream shares
// the same id and created timestamp.
type Formatter struct {
	ID      string
	Created int64
	Model   string
}

func NewFormatter(model string, now time.Time) Formatter {
	return Formatter{ID: newCompletionID(), Created: now.Unix(), Model: model}
}

// Result builds the non-streaming body for a finished answer.
func (f Formatter) Result(answer, prompt string) domain.CompletionResult {
	promptTokens := EstimateTokens(prompt)
	completionTokens := EstimateTokens(answer)
	return domain.CompletionResult{
		ID:      f.ID,
		Object:  domain.ObjectChatCompletion,
		Created: f.Created,
		Model:   f.Model,
		Choices: []domain.CompletionChoice{{
			Index:        0,
			Message:      domain.ChatMessage{Role: domain.RoleAssistant, Content: answer},
			FinishReason: domain.FinishReasonStop,
		}},
		Usage: domain.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}

// Chunk wraps one streamed fragment.
func (f Formatter) Chunk(fragment string) domain.CompletionChunk {
	return f.chunk(domain.ChunkDelta{Content: fragment}, nil)
}

// StopChunk is the terminal chunk: empty delta, finish_reason "stop".
func (f Formatter) StopChunk() domain.CompletionChunk {
	reason := domain.FinishReasonStop
	return f.chunk(domain.ChunkDelta{}, &reason)
}

func (f Formatter) chunk(delta domain.ChunkDelta, finish *string) domain.CompletionChunk {
	return domain.CompletionChunk{
		ID:      f.ID,
		Object:  domain.ObjectChatCompletionChunk,
		Created: f.Created,
		Model:   f.Model,
		Choices: []domain.ChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
	}
}

// EstimateTokens approximates a token count as one token per four
// characters, rounded up. It is not a real tokenizer.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}
