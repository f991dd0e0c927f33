package interfaces

import (
	"github.com/ternarybob/colloquy/internal/models"
)

// DocumentStorage persists document records
type DocumentStorage interface {
	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)
	UpdateDocument(doc *models.Document) error
	DeleteDocument(id string) error

	// ListDocuments returns documents in a workspace, newest first
	ListDocuments(workspaceID string) ([]*models.Document, error)

	// ListDocumentsByStatus returns documents in the given status, oldest
	// update first, capped at limit. Used by the retry scheduler.
	ListDocumentsByStatus(status models.DocumentStatus, limit int) ([]*models.Document, error)

	// ClaimProcessing transitions a document into processing only if its
	// current status still matches expected. Returns the updated document,
	// or an error when another caller won the claim.
	ClaimProcessing(id string, expected models.DocumentStatus) (*models.Document, error)

	CountDocuments() (int, error)
}

// ChunkStorage persists chunk records and performs vector similarity search
type ChunkStorage interface {
	SaveChunk(chunk *models.Chunk) error

	// DeleteChunks removes all chunks belonging to a document. Must fully
	// complete before any insert of the same document's replacement chunks.
	DeleteChunks(documentID string) error

	// GetChunks returns a document's chunks ordered by chunk index
	GetChunks(documentID string) ([]*models.Chunk, error)

	// SearchChunks returns chunks in the workspace whose cosine similarity
	// to the query vector is at or above threshold, ordered by descending
	// similarity, capped at count.
	SearchChunks(workspaceID string, embedding []float32, threshold float64, count int) ([]*models.SearchResult, error)

	CountChunks(documentID string) (int, error)
}

// BlobStorage stores raw uploaded file bytes
type BlobStorage interface {
	Upload(path string, data []byte) error
	Download(path string) ([]byte, error)
	Remove(path string) error
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	DocumentStorage() DocumentStorage
	ChunkStorage() ChunkStorage
	BlobStorage() BlobStorage
	Close() error
}
