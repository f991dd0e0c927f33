package interfaces

import "github.com/ternarybob/colloquy/internal/models"

// DocumentEvent notifies subscribers of a document status change
type DocumentEvent struct {
	DocumentID  string                `json:"document_id"`
	WorkspaceID string                `json:"workspace_id"`
	Name        string                `json:"name"`
	Status      models.DocumentStatus `json:"status"`
}

// EventService publishes document lifecycle events to connected clients
type EventService interface {
	PublishDocumentStatus(event DocumentEvent)
}
