package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("document not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) UpdateDocument(doc *models.Document) error {
	return s.SaveDocument(doc)
}

func (s *DocumentStorage) DeleteDocument(id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListDocuments(workspaceID string) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("WorkspaceID").Eq(workspaceID).Index("WorkspaceID")); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) ListDocumentsByStatus(status models.DocumentStatus, limit int) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to list documents by status: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.Before(docs[j].UpdatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

// ClaimProcessing moves a document into processing only when its status
// still matches expected, inside a single badgerhold update. Concurrent
// claims for the same document serialize on the store transaction, so at
// most one caller wins.
func (s *DocumentStorage) ClaimProcessing(id string, expected models.DocumentStatus) (*models.Document, error) {
	var claimed *models.Document
	err := s.db.Store().UpdateMatching(&models.Document{},
		badgerhold.Where(badgerhold.Key).Eq(id).And("Status").Eq(expected),
		func(record interface{}) error {
			doc, ok := record.(*models.Document)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			doc.Status = models.DocumentStatusProcessing
			doc.UpdatedAt = time.Now()
			copied := *doc
			claimed = &copied
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to claim document: %w", err)
	}
	if claimed == nil {
		current, getErr := s.GetDocument(id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("document %s is %s, expected %s", id, current.Status, expected)
	}

	s.logger.Debug().Str("document_id", id).Str("from", string(expected)).Msg("Claimed document for processing")
	return claimed, nil
}

func (s *DocumentStorage) CountDocuments() (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}
