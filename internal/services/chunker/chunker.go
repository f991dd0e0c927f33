// Package chunker splits extracted document text into overlapping,
// boundary-aware segments sized for embedding.
package chunker

import (
	"strings"
)

const (
	// DefaultChunkSize is the target chunk window in bytes
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the overlap carried between adjacent chunks
	DefaultChunkOverlap = 200
)

// Chunker is a deterministic, pure text splitter
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker with the given window and overlap.
// Non-positive values fall back to the defaults.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split walks the text in fixed windows, preferring to cut at the last
// sentence terminator or newline when one falls past the window midpoint.
// Every byte of input is covered by at least one chunk; adjacent chunks
// share overlapping context.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	start := 0

	for start < len(text) {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		chunkEnd := end

		// Prefer a linguistic break over a hard cut when the naive end
		// falls strictly inside the text.
		if end < len(text) {
			lastPeriod := strings.LastIndex(text[:end+1], ".")
			lastNewline := strings.LastIndex(text[:end+1], "\n")
			breakPoint := lastPeriod
			if lastNewline > breakPoint {
				breakPoint = lastNewline
			}
			if breakPoint > start+c.size/2 {
				chunkEnd = breakPoint + 1
			}
		}

		chunk := strings.TrimSpace(text[start:chunkEnd])
		if len(chunk) > 0 {
			chunks = append(chunks, chunk)
		}

		// A boundary cut close behind the window start can put
		// chunkEnd-overlap at or before the current position; force
		// forward progress so the loop terminates.
		next := chunkEnd - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
		if chunkEnd >= len(text) {
			break
		}
	}

	return chunks
}
