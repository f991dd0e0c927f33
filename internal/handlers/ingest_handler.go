package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
)

// IngestHandler exposes synchronous document processing
type IngestHandler struct {
	ingest interfaces.IngestService
	logger arbor.ILogger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingest interfaces.IngestService, logger arbor.ILogger) *IngestHandler {
	return &IngestHandler{
		ingest: ingest,
		logger: logger,
	}
}

type processRequest struct {
	DocumentID string `json:"documentId"`
}

// ProcessHandler handles POST /api/documents/process. Unlike the upload
// path this runs the pipeline inline and returns the full run summary,
// including per-chunk failure counts.
func (h *IngestHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DocumentID == "" {
		WriteError(w, http.StatusBadRequest, "documentId is required")
		return
	}

	result, err := h.ingest.Process(r.Context(), req.DocumentID)
	if err != nil {
		h.logger.Warn().Err(err).Str("document_id", req.DocumentID).Msg("Document processing failed")

		switch {
		case strings.Contains(err.Error(), "not found"):
			WriteError(w, http.StatusNotFound, err.Error())
		case strings.Contains(err.Error(), "already being processed"):
			WriteError(w, http.StatusConflict, err.Error())
		default:
			status := http.StatusInternalServerError
			if result != nil {
				// The pipeline ran and recorded a failed outcome; report
				// it with the run summary attached
				WriteJSON(w, status, map[string]interface{}{
					"status": "error",
					"error":  err.Error(),
					"result": result,
				})
				return
			}
			WriteError(w, status, err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
