package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/services/llm"
)

// ChatHandler handles grounded chat HTTP requests
type ChatHandler struct {
	chatService interfaces.ChatService
	validate    *validator.Validate
	logger      arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService interfaces.ChatService, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		validate:    validator.New(),
		logger:      logger,
	}
}

// ChatHandler handles POST /api/chat requests. The upstream completion
// stream is proxied to the client byte for byte as server-sent events;
// provider rate-limit and billing failures are mapped to their own
// status codes before any stream bytes go out.
func (h *ChatHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req interfaces.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode chat request")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "workspaceId and question are required")
		return
	}

	h.logger.Info().
		Str("workspace_id", req.WorkspaceID).
		Int("question_length", len(req.Question)).
		Int("history_length", len(req.History)).
		Msg("Processing chat request")

	stream, err := h.chatService.Chat(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrRateLimited):
			WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		case errors.Is(err, llm.ErrCreditsDepleted):
			WriteError(w, http.StatusPaymentRequired, "AI credits depleted. Please add funds to continue.")
		default:
			h.logger.Error().Err(err).Msg("Failed to start chat stream")
			WriteError(w, http.StatusInternalServerError, "Failed to generate response")
		}
		return
	}
	defer stream.Body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.copyStream(w, stream.Body)
}

// copyStream forwards the provider stream, flushing after every read so
// deltas reach the client as they arrive
func (h *ChatHandler) copyStream(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.logger.Debug().Err(werr).Msg("Chat client disconnected")
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn().Err(err).Msg("Chat stream ended with error")
			}
			return
		}
	}
}
