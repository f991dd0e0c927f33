package interfaces

import (
	"context"

	"github.com/ternarybob/colloquy/internal/models"
)

// SearchOptions controls similarity search behavior
type SearchOptions struct {
	// Threshold is the minimum similarity score for a candidate
	Threshold float64

	// Limit caps the number of returned results
	Limit int

	// DocumentIDs optionally restricts results to a document subset.
	// Filtering is applied after the similarity search, so the effective
	// result count can fall below Limit.
	DocumentIDs []string
}

// RetrievalService embeds a query and searches the chunk store
type RetrievalService interface {
	Search(ctx context.Context, workspaceID, query string, opts SearchOptions) ([]*models.SearchResult, error)
}
