package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sbu-europe/fintalk/internal/domain"
	"github.com/sbu-europe/fintalk/internal/ingest"
)

const DefaultMaxUploadBytes = 10 << 20

var newUUID = func() string { return uuid.NewString() }

// Embedder turns text into a vector. The Bedrock and OpenAI integrations
// implement it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkWriter persists embedded chunks. The whole document is written at once.
type ChunkWriter interface {
	InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error
}

type UploadInput struct {
	Filename string
	Data     []byte
}

type UploadOutput struct {
	Status        string `json:"status"`
	DocumentID    string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
	Filename      string `json:"filename"`
	Message       string `json:"message"`
}

// DocumentService extracts, chunks, embeds and indexes uploaded documents.
type DocumentService struct {
	embedder  Embedder
	store     ChunkWriter
	logger    *slog.Logger
	maxBytes  int64
	chunkSize int
	overlap   int
	now       func() time.Time
}

type DocumentOption func(*DocumentService)

func WithMaxUploadBytes(n int64) DocumentOption {
	return func(s *DocumentService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithChunking(size, overlap int) DocumentOption {
	return func(s *DocumentService) {
		if size > 0 && overlap >= 0 && overlap < size {
			s.chunkSize, s.overlap = size, overlap
		}
	}
}

func WithDocumentLogger(logger *slog.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewDocumentService(embedder Embedder, store ChunkWriter, opts ...DocumentOption) (*DocumentService, error) {
	if embedder == nil {
		return nil, errors.New("usecase: embedder must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: chunk writer must not be nil")
	}
	s := &DocumentService{
		embedder:  embedder,
		store:     store,
		logger:    slog.Default(),
		maxBytes:  DefaultMaxUploadBytes,
		chunkSize: ingest.DefaultChunkSize,
		overlap:   ingest.DefaultChunkOverlap,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MaxBytes is the largest accepted upload.
func (s *DocumentService) MaxBytes() int64 { return s.maxBytes }

// Upload indexes one document and returns its id and chunk count.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (UploadOutput, error) {
	name := filepath.Base(strings.TrimSpace(in.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return UploadOutput{}, newValidationError("file", "missing_file", "file is required")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !ingest.Supported(name) {
		return UploadOutput{}, newValidationError("file", "unsupported_format", fmt.Sprintf(
			"Unsupported file format '%s'. Supported formats: %s", ext, strings.Join(ingest.SupportedExtensions(), ", ")))
	}
	if int64(len(in.Data)) > s.maxBytes {
		return UploadOutput{}, newValidationError("file", "file_too_large", fmt.Sprintf(
			"File size exceeds maximum allowed size of %.1f MB", float64(s.maxBytes)/(1<<20)))
	}
	if len(in.Data) == 0 {
		return UploadOutput{}, &Error{Code: ErrorDocumentLoad, Reason: "empty_file", Detail: "The uploaded document is empty"}
	}

	text, err := ingest.Extract(name, in.Data)
	if err != nil {
		return UploadOutput{}, &Error{Code: ErrorDocumentParse, Reason: "extract_failed", Detail: "Failed to parse document " + name, Err: err}
	}
	parts := ingest.Split(text, s.chunkSize, s.overlap)
	if len(parts) == 0 {
		return UploadOutput{}, &Error{Code: ErrorDocumentLoad, Reason: "no_text", Detail: "No text content could be extracted from " + name}
	}

	docID := newUUID()
	uploadedAt := s.now().UTC()
	chunks := make([]domain.DocumentChunk, 0, len(parts))
	for i, part := range parts {
		vec, err := s.embedder.Embed(ctx, part)
		if err != nil {
			return UploadOutput{}, s.indexFailure(docID, "embed_failed", err)
		}
		chunks = append(chunks, domain.DocumentChunk{
			DocumentID:  docID,
			Filename:    name,
			ChunkIndex:  i,
			TotalChunks: len(parts),
			Content:     part,
			Language:    ingest.DetectLanguage(part),
			Embedding:   vec,
			UploadedAt:  uploadedAt,
		})
	}
	if err := s.store.InsertChunks(ctx, chunks); err != nil {
		return UploadOutput{}, s.indexFailure(docID, "store_failed", err)
	}

	s.logger.Info("document indexed", "document_id", docID, "filename", name, "chunks", len(chunks))
	return UploadOutput{
		Status:        "success",
		DocumentID:    docID,
		ChunksCreated: len(chunks),
		Filename:      name,
		Message:       fmt.Sprintf("Document processed successfully. Created %d chunks.", len(chunks)),
	}, nil
}

func (s *DocumentService) indexFailure(docID, reason string, err error) *Error {
	s.logger.Error("document indexing failed", "document_id", docID, "reason", reason, "err", err)
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return newError(ErrorServiceUnavailable, reason, err)
	}
	return newError(ErrorIndexing, reason, err)
}
