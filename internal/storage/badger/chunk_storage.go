package badger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ChunkStorage implements the ChunkStorage interface for Badger
type ChunkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChunkStorage creates a new ChunkStorage instance
func NewChunkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ChunkStorage {
	return &ChunkStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ChunkStorage) SaveChunk(chunk *models.Chunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if chunk.DocumentID == "" {
		return fmt.Errorf("chunk document ID is required")
	}

	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(chunk.ID, chunk); err != nil {
		return fmt.Errorf("failed to save chunk: %w", err)
	}
	return nil
}

func (s *ChunkStorage) DeleteChunks(documentID string) error {
	err := s.db.Store().DeleteMatching(&models.Chunk{},
		badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID"))
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *ChunkStorage) GetChunks(documentID string) ([]*models.Chunk, error) {
	var chunks []models.Chunk
	err := s.db.Store().Find(&chunks,
		badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})

	result := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		result[i] = &chunks[i]
	}
	return result, nil
}

// SearchChunks scans the workspace's chunks and ranks them by cosine
// similarity against the query vector. Linear scan; fine for the
// per-workspace document counts this serves.
func (s *ChunkStorage) SearchChunks(workspaceID string, embedding []float32, threshold float64, count int) ([]*models.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}

	var chunks []models.Chunk
	err := s.db.Store().Find(&chunks,
		badgerhold.Where("WorkspaceID").Eq(workspaceID).Index("WorkspaceID"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}

	var results []*models.SearchResult
	for i := range chunks {
		similarity, ok := cosineSimilarity(embedding, chunks[i].Embedding)
		if !ok || similarity < threshold {
			continue
		}
		results = append(results, &models.SearchResult{
			ChunkID:    chunks[i].ID,
			DocumentID: chunks[i].DocumentID,
			Content:    chunks[i].Content,
			Similarity: similarity,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if count > 0 && len(results) > count {
		results = results[:count]
	}

	// Resolve document names once per distinct document
	names := make(map[string]string)
	for _, r := range results {
		name, found := names[r.DocumentID]
		if !found {
			var doc models.Document
			if err := s.db.Store().Get(r.DocumentID, &doc); err == nil {
				name = doc.Name
			}
			names[r.DocumentID] = name
		}
		r.DocumentName = name
	}

	return results, nil
}

func (s *ChunkStorage) CountChunks(documentID string) (int, error) {
	count, err := s.db.Store().Count(&models.Chunk{},
		badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// The second return is false when the vectors differ in length or either
// has zero magnitude.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
