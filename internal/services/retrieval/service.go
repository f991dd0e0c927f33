// Package retrieval turns a natural-language query into ranked document
// excerpts via embedding similarity search.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
)

// Service implements the RetrievalService interface
type Service struct {
	embedder interfaces.EmbeddingClient
	chunks   interfaces.ChunkStorage
	logger   arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.RetrievalService = (*Service)(nil)

// NewService creates a new retrieval service
func NewService(embedder interfaces.EmbeddingClient, chunks interfaces.ChunkStorage, logger arbor.ILogger) *Service {
	return &Service{
		embedder: embedder,
		chunks:   chunks,
		logger:   logger,
	}
}

// Search embeds the query and returns workspace chunks ranked by
// similarity. An empty result set is not an error. When opts.DocumentIDs
// is set, results outside the subset are dropped after the search, so
// fewer than opts.Limit results can come back.
func (s *Service) Search(ctx context.Context, workspaceID, query string, opts interfaces.SearchOptions) ([]*models.SearchResult, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace ID is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.chunks.SearchChunks(workspaceID, embedding, opts.Threshold, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	if len(opts.DocumentIDs) > 0 {
		allowed := make(map[string]bool, len(opts.DocumentIDs))
		for _, id := range opts.DocumentIDs {
			allowed[id] = true
		}
		filtered := results[:0]
		for _, r := range results {
			if allowed[r.DocumentID] {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	s.logger.Debug().
		Str("workspace_id", workspaceID).
		Int("results", len(results)).
		Msg("Similarity search completed")

	return results, nil
}
