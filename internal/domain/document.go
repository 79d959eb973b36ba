package domain

import "time"

// DocumentChunk is one embedded slice of an uploaded document.
type DocumentChunk struct {
	ID          int64
	DocumentID  string
	Filename    string
	ChunkIndex  int
	TotalChunks int
	Content     string
	Language    string
	Embedding   []float32
	UploadedAt  time.Time
}

// SearchHit is a chunk returned by a similarity search. Distance is the L2
// distance between the query and chunk embeddings.
type SearchHit struct {
	Chunk    DocumentChunk
	Distance float64
}

// Similarity converts the L2 distance into a score in (0, 1].
func (h SearchHit) Similarity() float64 {
	return 1 / (1 + h.Distance)
}
