package ingest

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
)

// stuckAge is how long a document may sit in processing before the
// scheduler treats it as abandoned and retries it
const stuckAge = 30 * time.Minute

// Scheduler periodically retries failed and abandoned documents
type Scheduler struct {
	service   interfaces.IngestService
	documents interfaces.DocumentStorage
	cron      *cron.Cron
	limit     int
	logger    arbor.ILogger
}

// NewScheduler creates a new retry scheduler
func NewScheduler(service interfaces.IngestService, documents interfaces.DocumentStorage, config *common.ProcessingConfig, logger arbor.ILogger) *Scheduler {
	limit := config.Limit
	if limit <= 0 {
		limit = 10
	}
	return &Scheduler{
		service:   service,
		documents: documents,
		cron:      cron.New(cron.WithSeconds()),
		limit:     limit,
		logger:    logger,
	}
}

// Start begins scheduled retry runs
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		// Default: every 15 minutes
		schedule = "0 */15 * * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runRetries()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Document retry scheduler started")

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Document retry scheduler stopped")
}

// RunNow triggers an immediate retry run
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate retry run")
	go s.runRetries()
}

func (s *Scheduler) runRetries() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	candidates := s.collectCandidates()
	if len(candidates) == 0 {
		return
	}

	s.logger.Info().Int("count", len(candidates)).Msg("Retrying documents")

	retried, errors := 0, 0
	for _, doc := range candidates {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.service.Process(ctx, doc.ID); err != nil {
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Retry failed")
			errors++
			continue
		}
		retried++
	}

	s.logger.Info().
		Int("retried", retried).
		Int("errors", errors).
		Msg("Retry run completed")
}

// collectCandidates gathers failed documents plus documents stuck in
// processing longer than stuckAge. A stuck document is reset to failed
// first so Process can claim it.
func (s *Scheduler) collectCandidates() []*models.Document {
	var candidates []*models.Document

	failed, err := s.documents.ListDocumentsByStatus(models.DocumentStatusFailed, s.limit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list failed documents")
	} else {
		candidates = append(candidates, failed...)
	}

	stuck, err := s.documents.ListDocumentsByStatus(models.DocumentStatusProcessing, s.limit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list processing documents")
		return candidates
	}

	cutoff := time.Now().Add(-stuckAge)
	for _, doc := range stuck {
		if doc.UpdatedAt.After(cutoff) {
			continue
		}
		doc.Status = models.DocumentStatusFailed
		if err := s.documents.UpdateDocument(doc); err != nil {
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to reset stuck document")
			continue
		}
		s.logger.Info().Str("document_id", doc.ID).Msg("Reset stuck document for retry")
		candidates = append(candidates, doc)
	}

	if len(candidates) > s.limit {
		candidates = candidates[:s.limit]
	}
	return candidates
}
