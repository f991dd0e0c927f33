package models

import (
	"fmt"
	"time"
)

// DocumentStatus is the ingestion lifecycle state of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// IsValid reports whether s is a known status value
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is a terminal pipeline state
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// CanTransition reports whether a transition from s to next is legal.
// Processing may only be entered from a non-processing state (a reprocess
// trigger re-enters from completed or failed); terminal states are only
// reachable from processing.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch next {
	case DocumentStatusProcessing:
		return s != DocumentStatusProcessing
	case DocumentStatusCompleted, DocumentStatusFailed:
		return s == DocumentStatusProcessing
	case DocumentStatusPending:
		return false
	}
	return false
}

// Document represents an uploaded file in a workspace, tracked through
// the ingestion lifecycle pending -> processing -> completed|failed.
type Document struct {
	ID          string         `json:"id" badgerhold:"key"`
	WorkspaceID string         `json:"workspace_id" badgerhold:"index"`
	Name        string         `json:"name"`
	FilePath    string         `json:"file_path"` // Blob store key for the raw bytes
	MimeType    string         `json:"mime_type"`
	SizeBytes   int64          `json:"size_bytes"`
	UploadedBy  string         `json:"uploaded_by"`
	Status      DocumentStatus `json:"status"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Transition validates and applies a status change
func (d *Document) Transition(next DocumentStatus) error {
	if !next.IsValid() {
		return fmt.Errorf("invalid document status: %s", next)
	}
	if !d.Status.CanTransition(next) {
		return fmt.Errorf("illegal status transition: %s -> %s", d.Status, next)
	}
	d.Status = next
	return nil
}
