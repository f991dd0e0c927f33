package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route for document status events
	mux.HandleFunc("/api/events/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Documents
	// The fixed /process route must be registered before the /{id} prefix route.
	mux.HandleFunc("/api/documents/process", s.app.IngestHandler.ProcessHandler)
	mux.HandleFunc("/api/documents", s.handleDocumentsRoute)
	mux.HandleFunc("/api/documents/", s.handleDocumentRoutes)

	// API routes - Chat and search
	mux.HandleFunc("/api/chat", s.app.ChatHandler.ChatHandler)
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleDocumentsRoute routes /api/documents requests (list and upload)
func (s *Server) handleDocumentsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.DocumentHandler.ListHandler(w, r)
	case "POST":
		s.app.DocumentHandler.UploadHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDocumentRoutes routes /api/documents/{id} and /api/documents/{id}/reprocess
func (s *Server) handleDocumentRoutes(w http.ResponseWriter, r *http.Request) {
	suffix := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if suffix == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// POST /api/documents/{id}/reprocess
	if id, ok := strings.CutSuffix(suffix, "/reprocess"); ok {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.DocumentHandler.ReprocessHandler(w, r, id)
		return
	}

	if strings.Contains(suffix, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case "GET":
		s.app.DocumentHandler.GetHandler(w, r, suffix)
	case "DELETE":
		s.app.DocumentHandler.DeleteHandler(w, r, suffix)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
