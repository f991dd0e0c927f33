package common

import (
	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewChunkID generates a unique chunk ID with the "chk_" prefix
func NewChunkID() string {
	return "chk_" + uuid.New().String()
}

// NewWorkspaceID generates a unique workspace ID with the "ws_" prefix
func NewWorkspaceID() string {
	return "ws_" + uuid.New().String()
}
