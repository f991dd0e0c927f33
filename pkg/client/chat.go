// Package client provides a Go client for the colloquy chat API. It
// maintains the conversation transcript across turns and surfaces
// streamed answer deltas through a callback.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/colloquy/pkg/streaming"
)

const (
	// DefaultTimeout covers the full streamed answer
	DefaultTimeout = 5 * time.Minute

	roleUser      = "user"
	roleAssistant = "assistant"
)

// Sentinel errors mapped from chat endpoint status codes
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrCreditsDepleted = errors.New("credits depleted")
)

// Message is one transcript turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOption configures a ChatSession
type ChatOption func(*ChatSession)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ChatOption {
	return func(s *ChatSession) {
		s.httpClient = httpClient
	}
}

// WithDocuments restricts retrieval to the given document IDs
func WithDocuments(documentIDs []string) ChatOption {
	return func(s *ChatSession) {
		s.documentIDs = documentIDs
	}
}

// ChatSession holds one conversation against a workspace. Not safe for
// concurrent use; each conversation gets its own session.
type ChatSession struct {
	baseURL     string
	workspaceID string
	documentIDs []string
	httpClient  *http.Client
	messages    []Message
}

// NewChatSession creates a session for the given server and workspace
func NewChatSession(baseURL, workspaceID string, opts ...ChatOption) *ChatSession {
	s := &ChatSession{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		workspaceID: workspaceID,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages returns a copy of the transcript so far
func (s *ChatSession) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

type chatRequest struct {
	WorkspaceID string    `json:"workspaceId"`
	Question    string    `json:"question"`
	History     []Message `json:"conversationHistory,omitempty"`
	DocumentIDs []string  `json:"documentIds,omitempty"`
}

// Ask sends a question and streams the answer. onDelta receives each
// content fragment as it arrives; pass nil to only collect the final
// answer. The user turn stays in the transcript even when the request
// fails, so a retry carries the same history the failed attempt did.
func (s *ChatSession) Ask(ctx context.Context, question string, onDelta func(delta string)) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	history := s.Messages()
	s.messages = append(s.messages, Message{Role: roleUser, Content: question})

	body, err := json.Marshal(chatRequest{
		WorkspaceID: s.workspaceID,
		Question:    question,
		History:     history,
		DocumentIDs: s.documentIDs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.statusError(resp)
	}

	answer, err := s.readStream(resp.Body, onDelta)
	if err != nil {
		// Keep whatever arrived before the stream broke.
		if answer != "" {
			s.messages = append(s.messages, Message{Role: roleAssistant, Content: answer})
		}
		return answer, err
	}

	s.messages = append(s.messages, Message{Role: roleAssistant, Content: answer})
	return answer, nil
}

func (s *ChatSession) readStream(body io.Reader, onDelta func(delta string)) (string, error) {
	decoder := streaming.NewDecoder()
	var answer strings.Builder

	emit := func(deltas []string) {
		for _, delta := range deltas {
			answer.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			emit(decoder.Feed(buf[:n]))
		}
		if decoder.Done() {
			return answer.String(), nil
		}
		if err == io.EOF {
			emit(decoder.Finish())
			return answer.String(), nil
		}
		if err != nil {
			return answer.String(), fmt.Errorf("chat stream read failed: %w", err)
		}
	}
}

func (s *ChatSession) statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrCreditsDepleted
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("chat failed with status %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("chat failed with status %d", resp.StatusCode)
}
