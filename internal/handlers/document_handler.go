package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
)

// maxUploadBytes caps accepted document uploads
const maxUploadBytes = 50 << 20 // 50 MB

// mimeByExtension maps common document extensions to MIME types for
// uploads whose part header carries no usable content type
var mimeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".md":   "text/markdown",
	".html": "text/html",
	".htm":  "text/html",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".json": "application/json",
}

// DocumentHandler handles document management HTTP requests
type DocumentHandler struct {
	documents interfaces.DocumentStorage
	chunks    interfaces.ChunkStorage
	blobs     interfaces.BlobStorage
	ingest    interfaces.IngestService
	logger    arbor.ILogger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(storage interfaces.StorageManager, ingest interfaces.IngestService, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		documents: storage.DocumentStorage(),
		chunks:    storage.ChunkStorage(),
		blobs:     storage.BlobStorage(),
		ingest:    ingest,
		logger:    logger,
	}
}

// UploadHandler handles POST /api/documents multipart uploads. The file
// is stored and the document registered as pending; processing runs in
// the background so the response returns immediately.
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	workspaceID := r.FormValue("workspaceId")
	if workspaceID == "" {
		WriteError(w, http.StatusBadRequest, "workspaceId is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		WriteError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	doc := &models.Document{
		ID:          common.NewDocumentID(),
		WorkspaceID: workspaceID,
		Name:        path.Base(header.Filename),
		MimeType:    detectMimeType(header.Header.Get("Content-Type"), header.Filename),
		SizeBytes:   int64(len(data)),
		UploadedBy:  r.FormValue("uploadedBy"),
		Status:      models.DocumentStatusPending,
	}
	doc.FilePath = fmt.Sprintf("%s/%s/%s", doc.WorkspaceID, doc.ID, doc.Name)

	if err := h.blobs.Upload(doc.FilePath, data); err != nil {
		h.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to store uploaded file")
		WriteError(w, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}
	if err := h.documents.SaveDocument(doc); err != nil {
		h.blobs.Remove(doc.FilePath)
		h.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to save document record")
		WriteError(w, http.StatusInternalServerError, "Failed to save document")
		return
	}

	h.logger.Info().
		Str("document_id", doc.ID).
		Str("name", doc.Name).
		Str("workspace_id", doc.WorkspaceID).
		Int("size_bytes", len(data)).
		Msg("Document uploaded")

	h.processAsync(doc.ID)

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"document": doc,
	})
}

// ListHandler handles GET /api/documents?workspaceId=...
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	workspaceID := r.URL.Query().Get("workspaceId")
	if workspaceID == "" {
		WriteError(w, http.StatusBadRequest, "workspaceId is required")
		return
	}

	docs, err := h.documents.ListDocuments(workspaceID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documents")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// GetHandler handles GET /api/documents/{id}
func (h *DocumentHandler) GetHandler(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.documents.GetDocument(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Document not found: "+id)
		return
	}

	count, _ := h.chunks.CountChunks(id)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"document":    doc,
		"chunk_count": count,
	})
}

// DeleteHandler handles DELETE /api/documents/{id}. Chunks and the
// stored file go with the record.
func (h *DocumentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.documents.GetDocument(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Document not found: "+id)
		return
	}

	if err := h.chunks.DeleteChunks(id); err != nil {
		h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to delete chunks")
		WriteError(w, http.StatusInternalServerError, "Failed to delete document chunks")
		return
	}
	if err := h.blobs.Remove(doc.FilePath); err != nil {
		h.logger.Warn().Err(err).Str("document_id", id).Msg("Failed to remove stored file")
	}
	if err := h.documents.DeleteDocument(id); err != nil {
		h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to delete document record")
		WriteError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	h.logger.Info().Str("document_id", id).Str("name", doc.Name).Msg("Document deleted")
	WriteSuccess(w, "Document deleted")
}

// ReprocessHandler handles POST /api/documents/{id}/reprocess. The run
// happens in the background; a document already in processing is
// rejected up front.
func (h *DocumentHandler) ReprocessHandler(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.documents.GetDocument(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Document not found: "+id)
		return
	}
	if doc.Status == models.DocumentStatusProcessing {
		WriteError(w, http.StatusConflict, "Document is already being processed")
		return
	}

	h.processAsync(id)
	WriteStarted(w, "Document reprocessing started")
}

// processAsync runs the ingestion pipeline in the background. Claim
// conflicts are logged, not surfaced; the claim inside Process is what
// actually guards against double runs.
func (h *DocumentHandler) processAsync(documentID string) {
	go func() {
		// The recovery middleware only covers the request goroutine; a
		// panic here would take the server down.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error().
					Str("document_id", documentID).
					Str("panic", fmt.Sprint(r)).
					Msg("Background processing panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if _, err := h.ingest.Process(ctx, documentID); err != nil {
			h.logger.Warn().Err(err).Str("document_id", documentID).Msg("Background processing failed")
		}
	}()
}

// detectMimeType prefers the upload's content type and falls back to the
// file extension
func detectMimeType(contentType, filename string) string {
	contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	if mime, ok := mimeByExtension[strings.ToLower(path.Ext(filename))]; ok {
		return mime
	}
	return "application/octet-stream"
}
