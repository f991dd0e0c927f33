package interfaces

// TextExtractor converts raw file bytes into plain text.
// Extraction never fails outright: unsupported or unreadable inputs
// produce a short placeholder string that the ingestion pipeline
// recognizes and treats as a processing failure.
type TextExtractor interface {
	Extract(data []byte, mimeType, fileName string) string

	// IsFailurePlaceholder reports whether text is an extraction
	// failure sentinel rather than real document content.
	IsFailurePlaceholder(text string) bool
}
