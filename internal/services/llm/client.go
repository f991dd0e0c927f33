// Package llm provides a streaming chat-completion client for an
// OpenAI-compatible gateway.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
)

const (
	// DefaultTimeout bounds the whole streamed response, not just headers
	DefaultTimeout = 5 * time.Minute

	// DefaultModel is the completion model used when none is configured
	DefaultModel = "google/gemini-2.5-flash"
)

// ErrRateLimited is returned when the gateway rejects the request with 429
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrCreditsDepleted is returned when the gateway rejects the request with 402
var ErrCreditsDepleted = errors.New("credits depleted")

// GatewayError carries a non-2xx gateway response outside the mapped cases
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("completion gateway error: %s (status %d)", e.Message, e.StatusCode)
}

// Client streams chat completions from the gateway
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.CompletionClient = (*Client)(nil)

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithModel sets the completion model
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClient creates a new completion gateway client
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type completionRequest struct {
	Model    string               `json:"model"`
	Messages []interfaces.Message `json:"messages"`
	Stream   bool                 `json:"stream"`
}

// StreamCompletion sends messages to the gateway and returns the raw
// event-stream body. The caller owns the returned reader and must close
// it. Rate-limit and payment failures map to sentinel errors so handlers
// can translate them to user-facing responses.
func (c *Client) StreamCompletion(ctx context.Context, messages []interfaces.Message) (io.ReadCloser, error) {
	body, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	if c.logger != nil {
		c.logger.Debug().
			Str("model", c.model).
			Int("messages", len(messages)).
			Msg("Starting completion stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, ErrRateLimited
		case http.StatusPaymentRequired:
			return nil, ErrCreditsDepleted
		}
		return nil, &GatewayError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	return resp.Body, nil
}
