package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colloquy/internal/interfaces"
)

func TestStreamCompletionSuccess(t *testing.T) {
	var gotAuth string
	var gotBody completionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", WithModel("google/gemini-2.5-flash"))

	messages := []interfaces.Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Hello"},
	}
	body, err := client.StreamCompletion(context.Background(), messages)
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[DONE]")

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "google/gemini-2.5-flash", gotBody.Model)
	assert.True(t, gotBody.Stream)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
}

func TestStreamCompletionRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	_, err := client.StreamCompletion(context.Background(), []interfaces.Message{{Role: "user", Content: "x"}})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestStreamCompletionCreditsDepleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payment required", http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	_, err := client.StreamCompletion(context.Background(), []interfaces.Message{{Role: "user", Content: "x"}})
	assert.ErrorIs(t, err, ErrCreditsDepleted)
}

func TestStreamCompletionGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "something broke", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	_, err := client.StreamCompletion(context.Background(), []interfaces.Message{{Role: "user", Content: "x"}})
	require.Error(t, err)

	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, http.StatusBadGateway, gatewayErr.StatusCode)
	assert.Contains(t, gatewayErr.Message, "something broke")
}

func TestStreamCompletionDefaultModel(t *testing.T) {
	var gotBody completionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	body, err := client.StreamCompletion(context.Background(), []interfaces.Message{{Role: "user", Content: "x"}})
	require.NoError(t, err)
	body.Close()

	assert.Equal(t, DefaultModel, gotBody.Model)
}
