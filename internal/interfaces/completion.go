package interfaces

import (
	"context"
	"io"
)

// Message is a single conversation turn
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// CompletionClient calls a streaming completion provider
type CompletionClient interface {
	// StreamCompletion sends the ordered message list with stream=true and
	// returns the provider's raw server-sent-event body. The caller owns
	// the reader and must close it; closing before EOF cancels the
	// upstream request.
	StreamCompletion(ctx context.Context, messages []Message) (io.ReadCloser, error)
}
