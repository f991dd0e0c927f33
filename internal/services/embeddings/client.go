// Package embeddings provides a client for a remote embedding provider
// with rate limiting and retry on server-side failures.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout per attempt
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second)
	DefaultRateLimit = 5

	// DefaultMaxRetries is the number of attempts before giving up on 5xx
	DefaultMaxRetries = 3

	// DefaultMaxInputChars is the provider input limit; longer text is
	// truncated before sending
	DefaultMaxInputChars = 8000

	// DefaultBackoff is the base backoff between attempts; the delay
	// grows linearly with the attempt number
	DefaultBackoff = time.Second
)

// ProviderError represents an error response from the embedding provider
type ProviderError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Retryable reports whether the failure is server-side and worth retrying
func (e *ProviderError) Retryable() bool {
	return e.StatusCode >= 500
}

// MalformedResponseError indicates the provider returned an unexpected
// response shape. Never retried.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed embedding response: %s", e.Reason)
}

// Client calls the embedding provider over HTTP
type Client struct {
	baseURL       string
	apiKey        string
	model         string
	dimension     int
	maxInputChars int
	maxRetries    int
	backoff       time.Duration
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.EmbeddingClient = (*Client)(nil)

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

// WithRateLimit sets a custom rate limit
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithMaxRetries sets the attempt bound for retryable failures
func WithMaxRetries(attempts int) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.maxRetries = attempts
		}
	}
}

// WithBackoff sets the base backoff between attempts
func WithBackoff(backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = backoff
	}
}

// WithMaxInputChars sets the truncation limit applied before sending
func WithMaxInputChars(limit int) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			c.maxInputChars = limit
		}
	}
}

// WithDimension sets the expected vector dimension. When non-zero,
// responses with a different length are rejected as malformed.
func WithDimension(dim int) ClientOption {
	return func(c *Client) {
		c.dimension = dim
	}
}

// NewClient creates a new embedding provider client
func NewClient(baseURL, apiKey, model string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		model:         model,
		maxInputChars: DefaultMaxInputChars,
		maxRetries:    DefaultMaxRetries,
		backoff:       DefaultBackoff,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Dimension returns the expected vector length
func (c *Client) Dimension() int {
	return c.dimension
}

type embedRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for text. Input is truncated to the
// provider limit. Server-side (5xx) and transport failures are retried up
// to the attempt bound with linearly increasing backoff; client-side
// failures propagate immediately. Exhausting retries returns the last
// error wrapped.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	text = truncate(text, c.maxInputChars)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.backoff
			if c.logger != nil {
				c.logger.Debug().
					Int("attempt", attempt+1).
					Str("backoff", delay.String()).
					Msg("Retrying embedding request")
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vector, err := c.embedOnce(ctx, text)
		if err == nil {
			return vector, nil
		}

		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.maxRetries, lastErr)
}

// embedOnce performs a single provider call
func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	endpoint := fmt.Sprintf("/v1beta/models/%s:embedContent", c.model)
	reqURL := fmt.Sprintf("%s%s?key=%s", c.baseURL, endpoint, c.apiKey)

	body, err := json.Marshal(embedRequest{
		Model:   "models/" + c.model,
		Content: embedContent{Parts: []embedPart{{Text: text}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   endpoint,
		}
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error()}
	}

	values := parsed.Embedding.Values
	if len(values) == 0 {
		return nil, &MalformedResponseError{Reason: "empty embedding values"}
	}
	if c.dimension > 0 && len(values) != c.dimension {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("expected %d dimensions, got %d", c.dimension, len(values)),
		}
	}

	return values, nil
}

// transportError wraps a network-level failure, which is retryable
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("embedding request failed: %v", e.err)
}

func (e *transportError) Unwrap() error {
	return e.err
}

// isRetryable reports whether the error warrants another attempt
func isRetryable(err error) bool {
	if pe, ok := err.(*ProviderError); ok {
		return pe.Retryable()
	}
	if _, ok := err.(*transportError); ok {
		return true
	}
	return false
}

// truncate limits text to max bytes without splitting a UTF-8 sequence
func truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
