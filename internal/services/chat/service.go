// Package chat assembles grounded prompts from retrieved document
// excerpts and streams answers from the completion gateway.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
)

// Service implements the ChatService interface
type Service struct {
	retrieval  interfaces.RetrievalService
	completion interfaces.CompletionClient
	config     *common.ChatConfig
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.ChatService = (*Service)(nil)

// NewService creates a new chat service
func NewService(retrieval interfaces.RetrievalService, completion interfaces.CompletionClient, config *common.ChatConfig, logger arbor.ILogger) *Service {
	return &Service{
		retrieval:  retrieval,
		completion: completion,
		config:     config,
		logger:     logger,
	}
}

// Chat retrieves relevant excerpts for the question, builds a grounded
// prompt around them, and opens the completion stream. Retrieval fetches
// a wider candidate set than the prompt can hold; only the top excerpts
// make it into the context. Finding nothing relevant is not an error,
// the model is told so instead.
func (s *Service) Chat(ctx context.Context, req *interfaces.ChatRequest) (*interfaces.ChatStream, error) {
	results, err := s.retrieval.Search(ctx, req.WorkspaceID, req.Question, interfaces.SearchOptions{
		Threshold:   s.config.MatchThreshold,
		Limit:       s.config.MatchCount,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("context retrieval failed: %w", err)
	}

	if limit := s.config.ContextLimit; limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	s.logger.Debug().
		Str("workspace_id", req.WorkspaceID).
		Int("excerpts", len(results)).
		Msg("Assembling grounded prompt")

	messages := make([]interfaces.Message, 0, len(req.History)+2)
	messages = append(messages, interfaces.Message{
		Role:    "system",
		Content: systemPromptPrefix + buildContext(results),
	})
	messages = append(messages, req.History...)
	messages = append(messages, interfaces.Message{
		Role:    "user",
		Content: req.Question,
	})

	body, err := s.completion.StreamCompletion(ctx, messages)
	if err != nil {
		return nil, err
	}

	return &interfaces.ChatStream{
		Body:    body,
		Context: results,
	}, nil
}

// buildContext renders excerpts as labelled blocks separated by rules
func buildContext(results []*models.SearchResult) string {
	if len(results) == 0 {
		return noContextFallback
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Document: %s]\n%s", r.DocumentName, r.Content)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
