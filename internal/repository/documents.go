package repository

import (
	"context"
	"errors"

	"github.com/pgvector/pgvector-go"

	"github.com/sbu-europe/fintalk/internal/domain"
)

// DocumentRepository stores embedded document chunks in Postgres with
// pgvector.
type DocumentRepository struct {
	db pgxIface
}

func NewDocumentRepository(db pgxIface) (*DocumentRepository, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &DocumentRepository{db: db}, nil
}

// InsertChunks writes all chunks of a document in one transaction.
func (r *DocumentRepository) InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storeError("begin", err)
	}
	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO doc_chunks (document_id, filename, chunk_index, total_chunks, content, language, embedding, uploaded_at)
			VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
		`,
			c.DocumentID,
			c.Filename,
			c.ChunkIndex,
			c.TotalChunks,
			c.Content,
			c.Language,
			pgvector.NewVector(c.Embedding),
			c.UploadedAt,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return storeError("insert chunk", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storeError("commit", err)
	}
	return nil
}

// Search returns the limit chunks nearest to embedding by L2 distance.
func (r *DocumentRepository) Search(ctx context.Context, embedding []float32, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, document_id::text, filename, chunk_index, total_chunks, content, language, uploaded_at,
			embedding <-> $1 AS distance
		FROM doc_chunks
		ORDER BY embedding <-> $1
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, storeError("search chunks", err)
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var h domain.SearchHit
		if err := rows.Scan(
			&h.Chunk.ID,
			&h.Chunk.DocumentID,
			&h.Chunk.Filename,
			&h.Chunk.ChunkIndex,
			&h.Chunk.TotalChunks,
			&h.Chunk.Content,
			&h.Chunk.Language,
			&h.Chunk.UploadedAt,
			&h.Distance,
		); err != nil {
			return nil, storeError("scan chunk", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("search chunks", err)
	}
	return hits, nil
}

// VectorStoreReady reports whether the vector extension is installed and the
// chunk table exists.
func (r *DocumentRepository) VectorStoreReady(ctx context.Context) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')
			AND to_regclass('public.doc_chunks') IS NOT NULL
	`).Scan(&ok)
	if err != nil {
		return false, storeError("vector store check", err)
	}
	return ok, nil
}
