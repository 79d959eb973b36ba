package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sbu-europe/fintalk/internal/agent"
	"github.com/sbu-europe/fintalk/internal/domain"
)

const (
	SearchDocumentsName = "search_documents"
	DefaultTopK         = 5
	noDocumentsFound    = "No relevant documents found for your query."
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ChunkSearcher interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]domain.SearchHit, error)
}

// SearchDocuments finds the document chunks closest to a query.
type SearchDocuments struct {
	embedder Embedder
	store    ChunkSearcher
	topK     int
	logger   *slog.Logger
}

var _ agent.Tool = (*SearchDocuments)(nil)

func NewSearchDocuments(embedder Embedder, store ChunkSearcher, topK int, logger *slog.Logger) (*SearchDocuments, error) {
	if embedder == nil || store == nil {
		return nil, errors.New("tools: search_documents needs an embedder and a store")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchDocuments{embedder: embedder, store: store, topK: topK, logger: logger}, nil
}

func (t *SearchDocuments) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name: SearchDocumentsName,
		Description: "Searches through uploaded documents using semantic similarity. " +
			"Use this tool when the user asks questions about uploaded documents, " +
			"financial reports, or any content that has been indexed in the system.",
		Schema: objectSchema("query", "The search query to find relevant document chunks"),
	}
}

func (t *SearchDocuments) Call(ctx context.Context, input map[string]any) (string, error) {
	query, err := stringArg(input, "query")
	if err != nil {
		return "", err
	}
	vec, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("searching documents: %w", err)
	}
	hits, err := t.store.Search(ctx, vec, t.topK)
	if err != nil {
		return "", fmt.Errorf("searching documents: %w", err)
	}
	if len(hits) == 0 {
		t.logger.Info("no relevant documents found")
		return noDocumentsFound, nil
	}

	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		source := h.Chunk.Filename
		if source == "" {
			source = "Unknown"
		}
		blocks = append(blocks, fmt.Sprintf("[Result %d]\nContent: %s\nSource: %s\nSimilarity: %.3f\n",
			i+1, h.Chunk.Content, source, h.Similarity()))
	}
	t.logger.Info("documents found", "count", len(hits))
	return strings.Join(blocks, "\n"), nil
}
