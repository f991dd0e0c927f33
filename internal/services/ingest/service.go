// Package ingest runs the document processing pipeline: blob download,
// text extraction, chunking, embedding, and persistence.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
	"github.com/ternarybob/colloquy/internal/services/chunker"
)

// Service implements the IngestService interface
type Service struct {
	documents interfaces.DocumentStorage
	chunks    interfaces.ChunkStorage
	blobs     interfaces.BlobStorage
	extractor interfaces.TextExtractor
	embedder  interfaces.EmbeddingClient
	events    interfaces.EventService
	chunker   *chunker.Chunker
	minText   int
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.IngestService = (*Service)(nil)

// NewService creates a new ingestion service
func NewService(
	storage interfaces.StorageManager,
	extractor interfaces.TextExtractor,
	embedder interfaces.EmbeddingClient,
	events interfaces.EventService,
	config *common.IngestConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		documents: storage.DocumentStorage(),
		chunks:    storage.ChunkStorage(),
		blobs:     storage.BlobStorage(),
		extractor: extractor,
		embedder:  embedder,
		events:    events,
		chunker:   chunker.New(config.ChunkSize, config.ChunkOverlap),
		minText:   config.MinTextLength,
		logger:    logger,
	}
}

// Process runs the full pipeline for one document. The document is
// claimed into processing first; a second caller claiming the same
// document loses and gets an error without touching its state. The run
// always ends with a terminal status write: completed when at least one
// chunk was embedded and stored, failed otherwise.
func (s *Service) Process(ctx context.Context, documentID string) (result *interfaces.IngestResult, err error) {
	doc, err := s.documents.GetDocument(documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.DocumentStatusProcessing {
		return nil, fmt.Errorf("document %s is already being processed", documentID)
	}

	doc, err = s.documents.ClaimProcessing(documentID, doc.Status)
	if err != nil {
		return nil, err
	}
	s.publish(doc)

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("name", doc.Name).
		Str("mime_type", doc.MimeType).
		Msg("Processing document")

	result = &interfaces.IngestResult{}

	// The claim above moved the document into processing. The terminal
	// write runs deferred so the document never stays there, even when a
	// pipeline stage panics.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("document processing panicked: %v", r)
			s.logger.Error().
				Str("document_id", doc.ID).
				Str("panic", fmt.Sprint(r)).
				Msg("Document processing panicked")
		}

		if result.Success {
			now := time.Now()
			doc.Status = models.DocumentStatusCompleted
			doc.ProcessedAt = &now
		} else {
			doc.Status = models.DocumentStatusFailed
		}
		if uerr := s.documents.UpdateDocument(doc); uerr != nil {
			s.logger.Warn().Err(uerr).Str("document_id", doc.ID).Msg("Failed to record terminal status")
		}
		s.publish(doc)

		s.logger.Info().
			Str("document_id", doc.ID).
			Str("status", string(doc.Status)).
			Int("chunks_processed", result.ChunksProcessed).
			Int("chunks_failed", result.ChunksFailed).
			Msg("Document processing finished")
	}()

	err = s.run(ctx, doc, result)
	return result, err
}

// run executes the pipeline stages and fills in result. A returned error
// means the pipeline stopped before the chunk loop; per-chunk failures
// are tolerated and only counted.
func (s *Service) run(ctx context.Context, doc *models.Document, result *interfaces.IngestResult) error {
	data, err := s.blobs.Download(doc.FilePath)
	if err != nil {
		return fmt.Errorf("failed to download document file: %w", err)
	}

	text := s.extractor.Extract(data, doc.MimeType, doc.Name)
	result.ExtractedTextLength = len(text)

	if s.extractor.IsFailurePlaceholder(text) {
		return fmt.Errorf("text extraction failed for %s", doc.Name)
	}
	if len(text) < s.minText {
		return fmt.Errorf("extracted text too short (%d chars) for %s", len(text), doc.Name)
	}

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return fmt.Errorf("no chunks produced for %s", doc.Name)
	}

	// Old chunks must be fully gone before any replacement lands, so a
	// reprocess never leaves a mixed generation behind.
	if err := s.chunks.DeleteChunks(doc.ID); err != nil {
		return fmt.Errorf("failed to clear existing chunks: %w", err)
	}

	for i, content := range pieces {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		embedding, err := s.embedder.Embed(ctx, content)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("document_id", doc.ID).
				Int("chunk_index", i).
				Msg("Failed to embed chunk")
			result.ChunksFailed++
			continue
		}

		chunk := &models.Chunk{
			ID:          common.NewChunkID(),
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			ChunkIndex:  i,
			Content:     content,
			Embedding:   embedding,
		}
		if err := s.chunks.SaveChunk(chunk); err != nil {
			s.logger.Warn().Err(err).
				Str("document_id", doc.ID).
				Int("chunk_index", i).
				Msg("Failed to store chunk")
			result.ChunksFailed++
			continue
		}
		result.ChunksProcessed++
	}

	result.Success = result.ChunksProcessed > 0
	if !result.Success {
		return fmt.Errorf("all %d chunks failed for %s", result.ChunksFailed, doc.Name)
	}
	return nil
}

func (s *Service) publish(doc *models.Document) {
	if s.events == nil {
		return
	}
	s.events.PublishDocumentStatus(interfaces.DocumentEvent{
		DocumentID:  doc.ID,
		WorkspaceID: doc.WorkspaceID,
		Name:        doc.Name,
		Status:      doc.Status,
	})
}
