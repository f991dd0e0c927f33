package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func writeEmbedding(w http.ResponseWriter, values []float32) {
	resp := map[string]interface{}{
		"embedding": map[string]interface{}{"values": values},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestEmbedSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody embedRequest

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEmbedding(w, []float32{0.1, 0.2, 0.3})
	})

	client := NewClient(server.URL, "test-key", "text-embedding-004",
		WithRateLimit(1000))

	vector, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)

	assert.Equal(t, "/v1beta/models/text-embedding-004:embedContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "models/text-embedding-004", gotBody.Model)
	require.Len(t, gotBody.Content.Parts, 1)
	assert.Equal(t, "hello world", gotBody.Content.Parts[0].Text)
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls int32
	var callTimes []time.Time

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		callTimes = append(callTimes, time.Now())
		if atomic.AddInt32(&calls, 1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeEmbedding(w, []float32{1, 2})
	})

	client := NewClient(server.URL, "key", "model",
		WithRateLimit(1000),
		WithBackoff(20*time.Millisecond))

	vector, err := client.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vector)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// linear backoff: second gap longer than first
	require.Len(t, callTimes, 3)
	first := callTimes[1].Sub(callTimes[0])
	second := callTimes[2].Sub(callTimes[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 40*time.Millisecond)
}

func TestEmbedExhaustsRetries(t *testing.T) {
	var calls int32

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	client := NewClient(server.URL, "key", "model",
		WithRateLimit(1000),
		WithBackoff(time.Millisecond))

	_, err := client.Embed(context.Background(), "doomed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbedClientErrorFailsImmediately(t *testing.T) {
	var calls int32

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	client := NewClient(server.URL, "key", "model",
		WithRateLimit(1000),
		WithBackoff(time.Millisecond))

	_, err := client.Embed(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	providerErr, ok := err.(*ProviderError)
	require.True(t, ok, "expected *ProviderError, got %T", err)
	assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
	assert.False(t, providerErr.Retryable())
}

func TestEmbedTruncatesInput(t *testing.T) {
	var gotBody embedRequest

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEmbedding(w, []float32{1})
	})

	client := NewClient(server.URL, "key", "model",
		WithRateLimit(1000),
		WithMaxInputChars(100))

	_, err := client.Embed(context.Background(), strings.Repeat("x", 500))
	require.NoError(t, err)
	require.Len(t, gotBody.Content.Parts, 1)
	assert.Len(t, gotBody.Content.Parts[0].Text, 100)
}

func TestEmbedTruncatePreservesUTF8(t *testing.T) {
	var gotBody embedRequest

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEmbedding(w, []float32{1})
	})

	client := NewClient(server.URL, "key", "model",
		WithRateLimit(1000),
		WithMaxInputChars(10))

	// Multi-byte runes that would straddle the byte limit
	_, err := client.Embed(context.Background(), strings.Repeat("é", 20))
	require.NoError(t, err)
	got := gotBody.Content.Parts[0].Text
	assert.LessOrEqual(t, len(got), 10)
	assert.True(t, strings.HasPrefix(strings.Repeat("é", 20), got))
	for _, r := range got {
		assert.NotEqual(t, '�', r)
	}
}

func TestEmbedEmptyText(t *testing.T) {
	client := NewClient("http://unused", "key", "model")
	_, err := client.Embed(context.Background(), "")
	assert.Error(t, err)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	var calls int32

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEmbedding(w, []float32{1, 2, 3})
	})

	client := NewClient(server.URL, "key", "model",
		WithRateLimit(1000),
		WithBackoff(time.Millisecond),
		WithDimension(768))

	_, err := client.Embed(context.Background(), "short vector")
	require.Error(t, err)
	// malformed responses are not retried
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "768")
}

func TestEmbedMalformedJSON(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	})

	client := NewClient(server.URL, "key", "model", WithRateLimit(1000))

	_, err := client.Embed(context.Background(), "text")
	require.Error(t, err)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestEmbedTransportErrorRetries(t *testing.T) {
	// Point at a closed server so every attempt fails at the transport level
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "key", "model",
		WithRateLimit(1000),
		WithBackoff(time.Millisecond),
		WithMaxRetries(2))

	start := time.Now()
	_, err := client.Embed(context.Background(), "unreachable")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)
}
