package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseEvent(content string) string {
	return "data: {\"choices\":[{\"delta\":{\"content\":\"" + content + "\"}}]}\n\n"
}

func chatServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		handler(w, req)
	}))
}

func TestAskStreamsAnswer(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		if req.WorkspaceID != "ws-1" || req.Question != "hello?" {
			t.Errorf("Unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseEvent("Hi") + sseEvent(" there") + "data: [DONE]\n\n"))
	})
	defer server.Close()

	session := NewChatSession(server.URL, "ws-1")
	var deltas []string
	answer, err := session.Ask(context.Background(), "hello?", func(delta string) {
		deltas = append(deltas, delta)
	})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "Hi there" {
		t.Errorf("Expected %q, got %q", "Hi there", answer)
	}
	if strings.Join(deltas, "") != "Hi there" {
		t.Errorf("Expected deltas to assemble the answer, got %v", deltas)
	}

	messages := session.Messages()
	if len(messages) != 2 {
		t.Fatalf("Expected 2 transcript turns, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "assistant" || messages[1].Content != "Hi there" {
		t.Errorf("Unexpected transcript: %+v", messages)
	}
}

func TestAskSendsHistory(t *testing.T) {
	var gotHistory []Message
	server := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		gotHistory = req.History
		w.Write([]byte(sseEvent("ok") + "data: [DONE]\n\n"))
	})
	defer server.Close()

	session := NewChatSession(server.URL, "ws-1")
	if _, err := session.Ask(context.Background(), "first", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Ask(context.Background(), "second", nil); err != nil {
		t.Fatal(err)
	}

	// The second turn carries the completed first exchange, not itself.
	if len(gotHistory) != 2 {
		t.Fatalf("Expected 2 history turns, got %d", len(gotHistory))
	}
	if gotHistory[0].Content != "first" || gotHistory[1].Content != "ok" {
		t.Errorf("Unexpected history: %+v", gotHistory)
	}
}

func TestAskDocumentFilter(t *testing.T) {
	var gotDocs []string
	server := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		gotDocs = req.DocumentIDs
		w.Write([]byte("data: [DONE]\n\n"))
	})
	defer server.Close()

	session := NewChatSession(server.URL, "ws-1", WithDocuments([]string{"doc-1", "doc-2"}))
	if _, err := session.Ask(context.Background(), "q", nil); err != nil {
		t.Fatal(err)
	}
	if len(gotDocs) != 2 {
		t.Errorf("Expected document filter to be sent, got %v", gotDocs)
	}
}

func TestAskErrorMapping(t *testing.T) {
	cases := []struct {
		status  int
		wantErr error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusPaymentRequired, ErrCreditsDepleted},
	}

	for _, tc := range cases {
		server := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
			w.WriteHeader(tc.status)
		})
		session := NewChatSession(server.URL, "ws-1")
		_, err := session.Ask(context.Background(), "q", nil)
		server.Close()

		if !errors.Is(err, tc.wantErr) {
			t.Errorf("Status %d: expected %v, got %v", tc.status, tc.wantErr, err)
		}

		// The failed question stays in the transcript so a retry
		// repeats the same conversation.
		messages := session.Messages()
		if len(messages) != 1 || messages[0].Role != "user" {
			t.Errorf("Status %d: unexpected transcript %+v", tc.status, messages)
		}
	}
}

func TestAskServerErrorMessage(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":"error","error":"Failed to generate response"}`))
	})
	defer server.Close()

	session := NewChatSession(server.URL, "ws-1")
	_, err := session.Ask(context.Background(), "q", nil)
	if err == nil || !strings.Contains(err.Error(), "Failed to generate response") {
		t.Errorf("Expected server error message, got %v", err)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	session := NewChatSession("http://localhost:0", "ws-1")
	if _, err := session.Ask(context.Background(), "   ", nil); err == nil {
		t.Error("Expected error for empty question")
	}
	if len(session.Messages()) != 0 {
		t.Error("Expected transcript to be untouched")
	}
}

func TestAskStreamWithoutSentinel(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		w.Write([]byte(sseEvent("partial")))
	})
	defer server.Close()

	session := NewChatSession(server.URL, "ws-1")
	answer, err := session.Ask(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "partial" {
		t.Errorf("Expected %q, got %q", "partial", answer)
	}
}
