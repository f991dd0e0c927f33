package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
)

// SearchRequest is the POST /api/search payload. Threshold and count
// fall back to configured defaults when omitted.
type SearchRequest struct {
	WorkspaceID    string   `json:"workspaceId" validate:"required"`
	Query          string   `json:"query" validate:"required"`
	MatchThreshold *float64 `json:"matchThreshold,omitempty"`
	MatchCount     *int     `json:"matchCount,omitempty"`
	DocumentIDs    []string `json:"documentIds,omitempty"`
}

// SearchHandler handles similarity search HTTP requests
type SearchHandler struct {
	retrieval interfaces.RetrievalService
	config    *common.SearchConfig
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(retrieval interfaces.RetrievalService, config *common.SearchConfig, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		retrieval: retrieval,
		config:    config,
		validate:  validator.New(),
		logger:    logger,
	}
}

// SearchHandler handles POST /api/search requests
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "workspaceId and query are required")
		return
	}

	opts := interfaces.SearchOptions{
		Threshold:   h.config.MatchThreshold,
		Limit:       h.config.MatchCount,
		DocumentIDs: req.DocumentIDs,
	}
	if req.MatchThreshold != nil {
		opts.Threshold = *req.MatchThreshold
	}
	if req.MatchCount != nil && *req.MatchCount > 0 {
		opts.Limit = *req.MatchCount
	}

	h.logger.Info().
		Str("workspace_id", req.WorkspaceID).
		Int("query_length", len(req.Query)).
		Msg("Search request received")

	results, err := h.retrieval.Search(r.Context(), req.WorkspaceID, req.Query, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to execute search")
		WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to execute search",
		})
		return
	}
	if results == nil {
		results = []*models.SearchResult{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": results,
	})
}
