package interfaces

import (
	"context"
	"io"

	"github.com/ternarybob/colloquy/internal/models"
)

// ChatRequest is a grounded chat call scoped to a workspace
type ChatRequest struct {
	WorkspaceID string    `json:"workspaceId" validate:"required"`
	Question    string    `json:"question" validate:"required"`
	History     []Message `json:"conversationHistory,omitempty"`

	// DocumentIDs optionally restricts retrieval to a document subset
	DocumentIDs []string `json:"documentIds,omitempty"`
}

// ChatStream is the streamed answer plus the context that grounded it
type ChatStream struct {
	// Body is the provider's raw server-sent-event stream, passed through
	// unbuffered. The caller must close it.
	Body io.ReadCloser

	// Context holds the retrieved excerpts included in the prompt
	Context []*models.SearchResult
}

// ChatService assembles a grounded prompt and streams the answer
type ChatService interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatStream, error)
}
