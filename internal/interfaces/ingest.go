package interfaces

import "context"

// IngestResult summarizes one ingestion run
type IngestResult struct {
	Success             bool `json:"success"`
	ChunksProcessed     int  `json:"chunksProcessed"`
	ChunksFailed        int  `json:"chunksFailed"`
	ExtractedTextLength int  `json:"extractedTextLength"`
}

// IngestService runs the extraction -> chunking -> embedding -> persistence
// pipeline for a single document and tracks its status through the
// pending -> processing -> completed|failed lifecycle.
type IngestService interface {
	Process(ctx context.Context, documentID string) (*IngestResult, error)
}
