package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
)

func wsTestServer(t *testing.T, config *common.WebSocketConfig) (*WebSocketHandler, *httptest.Server, string) {
	t.Helper()
	handler := NewWebSocketHandler(arbor.NewLogger(), config)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return handler, server, wsURL
}

func TestWebSocketHello(t *testing.T) {
	_, _, wsURL := wsTestServer(t, &common.WebSocketConfig{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read hello: %v", err)
	}
	if msg.Type != "hello" {
		t.Errorf("Expected hello message, got %s", msg.Type)
	}
}

func TestWebSocketDocumentStatusFanOut(t *testing.T) {
	handler, _, wsURL := wsTestServer(t, &common.WebSocketConfig{})

	numSubscribers := 3
	received := make([][]documentEventPayload, numSubscribers)
	var receivedMutex sync.Mutex

	var wg sync.WaitGroup
	wg.Add(numSubscribers)

	conns := make([]*websocket.Conn, numSubscribers)
	for i := 0; i < numSubscribers; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect subscriber %d: %v", i, err)
		}
		conns[i] = conn

		subscriberIdx := i
		go func() {
			defer wg.Done()
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))

			for {
				var msg WSMessage
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				if msg.Type != "document_status" {
					continue
				}

				data, err := json.Marshal(msg.Payload)
				if err != nil {
					continue
				}
				var payload documentEventPayload
				if err := json.Unmarshal(data, &payload); err != nil {
					continue
				}

				receivedMutex.Lock()
				received[subscriberIdx] = append(received[subscriberIdx], payload)
				receivedMutex.Unlock()
			}
		}()
	}

	// Wait for all subscribers to register
	time.Sleep(100 * time.Millisecond)

	handler.PublishDocumentStatus(interfaces.DocumentEvent{
		DocumentID:  "doc-1",
		WorkspaceID: "ws-1",
		Name:        "handbook.pdf",
		Status:      models.DocumentStatusProcessing,
	})
	handler.PublishDocumentStatus(interfaces.DocumentEvent{
		DocumentID:  "doc-1",
		WorkspaceID: "ws-1",
		Name:        "handbook.pdf",
		Status:      models.DocumentStatusCompleted,
	})

	time.Sleep(300 * time.Millisecond)
	for _, conn := range conns {
		conn.Close()
	}
	wg.Wait()

	receivedMutex.Lock()
	defer receivedMutex.Unlock()
	for i, events := range received {
		if len(events) != 2 {
			t.Errorf("Subscriber %d received %d events, expected 2", i, len(events))
			continue
		}
		if events[0].Status != string(models.DocumentStatusProcessing) ||
			events[1].Status != string(models.DocumentStatusCompleted) {
			t.Errorf("Subscriber %d received events out of order: %+v", i, events)
		}
		if events[0].DocumentID != "doc-1" || events[0].WorkspaceID != "ws-1" {
			t.Errorf("Subscriber %d received wrong event: %+v", i, events[0])
		}
	}

	// All clients cleaned up after close
	time.Sleep(100 * time.Millisecond)
	handler.mu.RLock()
	remaining := len(handler.clients)
	remainingMutexes := len(handler.clientMutex)
	handler.mu.RUnlock()
	if remaining != 0 || remainingMutexes != 0 {
		t.Errorf("Handler still tracks %d clients and %d mutexes after cleanup", remaining, remainingMutexes)
	}
}

func TestWebSocketConnectionLimit(t *testing.T) {
	_, server, wsURL := wsTestServer(t, &common.WebSocketConfig{MaxConnections: 1})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect first client: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 at connection cap, got %d", resp.StatusCode)
	}
}
