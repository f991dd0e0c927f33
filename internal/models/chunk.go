package models

import "time"

// Chunk is a bounded slice of a document's extracted text, stored with
// its own embedding vector for independent retrieval. For any document
// the chunk indices are contiguous from 0 after a successful ingestion;
// reprocessing replaces the full set.
type Chunk struct {
	ID          string    `json:"id" badgerhold:"key"`
	DocumentID  string    `json:"document_id" badgerhold:"index"`
	WorkspaceID string    `json:"workspace_id" badgerhold:"index"` // Denormalized for search scoping
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult is a ranked chunk returned by vector similarity search.
// Not persisted.
type SearchResult struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}
