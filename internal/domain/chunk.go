package domain

import "time"

// Chunk represents a contiguous slice of a document's text sized for
// embedding. Chunk indices are 0-based, contiguous and gapless per document.
// Chunks are immutable once created; reprocessing a document replaces its
// chunk set wholesale.
type Chunk struct {
	ID              string
	DocumentID      string
	KnowledgeBaseID string
	ChunkIndex      int
	Content         string
	TokenCount      int
	// EmbeddingModel records which model produced the vector. Vectors from
	// different models must never be compared, so search filters on it.
	EmbeddingModel string
	// Embedding is nil until the chunk has been embedded. Chunks without a
	// vector are excluded from search entirely.
	Embedding []float32
	CreatedAt time.Time
}

// ChunkMatch is a single vector-search hit with its similarity score and the
// citation metadata downstream consumers need.
type ChunkMatch struct {
	ChunkID         string
	DocumentID      string
	DocumentTitle   string
	KnowledgeBaseID string
	ChunkIndex      int
	Content         string
	Similarity      float64
}
