// Package extract converts raw uploaded file bytes into plain text.
// Extraction never raises: unreadable inputs yield a placeholder string
// that downstream validation recognizes as a processing failure.
package extract

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

const (
	mimePDF      = "application/pdf"
	mimeDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeMarkdown = "text/markdown"
	mimeHTML     = "text/html"

	failureSentinel = "text extraction failed"
)

// docxTextRun matches inline text runs in WordprocessingML. A full XML
// parser is deliberately avoided: the runs are flat and pattern matching
// over the decoded payload is sufficient.
var docxTextRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// Service implements the TextExtractor interface
type Service struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.TextExtractor = (*Service)(nil)

// NewService creates a new text extraction service
func NewService(logger arbor.ILogger) *Service {
	tempDir := filepath.Join(os.TempDir(), "colloquy-extract")
	os.MkdirAll(tempDir, 0755)

	return &Service{
		logger:  logger,
		tempDir: tempDir,
	}
}

// Extract converts file bytes into plain text according to the declared
// MIME type. It always returns a string; failures produce a placeholder
// tagged with the filename instead of an error.
func (s *Service) Extract(data []byte, mimeType, fileName string) string {
	switch {
	case mimeType == mimePDF:
		return s.extractPDF(data, fileName)

	case mimeType == mimeDocx:
		return s.extractDocx(data, fileName)

	case mimeType == mimeMarkdown || strings.HasSuffix(fileName, ".md"):
		return s.extractMarkdown(data, fileName)

	case strings.HasPrefix(mimeType, mimeHTML):
		return s.extractHTML(data, fileName)

	case strings.HasPrefix(mimeType, "text/"):
		return extractPlainText(data)

	default:
		s.logger.Debug().
			Str("mime_type", mimeType).
			Str("file", fileName).
			Msg("Unknown MIME type, returning placeholder")
		return fmt.Sprintf("Document: %s", fileName)
	}
}

// IsFailurePlaceholder reports whether text is an extraction failure
// sentinel rather than real document content.
func (s *Service) IsFailurePlaceholder(text string) bool {
	return strings.Contains(text, failureSentinel)
}

// extractPlainText decodes bytes as UTF-8, replacing invalid sequences
// instead of raising.
func extractPlainText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

// extractDocx pulls text from inline <w:t> runs in the decoded payload
// and joins the fragments with single spaces.
func (s *Service) extractDocx(data []byte, fileName string) string {
	payload := extractPlainText(data)

	matches := docxTextRun.FindAllStringSubmatch(payload, -1)
	fragments := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[1] != "" {
			fragments = append(fragments, html.UnescapeString(m[1]))
		}
	}

	extracted := strings.TrimSpace(strings.Join(fragments, " "))
	if extracted == "" {
		return fmt.Sprintf("Document: %s (DOCX content)", fileName)
	}

	return extracted
}

// extractMarkdown walks the goldmark AST and collects text nodes,
// separating block-level elements with newlines.
func (s *Service) extractMarkdown(data []byte, fileName string) string {
	md := goldmark.New()
	doc := md.Parser().Parse(gtext.NewReader(data))

	var builder strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && builder.Len() > 0 {
				builder.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			builder.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				builder.WriteString(" ")
			}
		case *ast.AutoLink:
			builder.Write(node.URL(data))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("file", fileName).Msg("Markdown walk failed, falling back to raw text")
		return extractPlainText(data)
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		return fmt.Sprintf("Document: %s", fileName)
	}
	return text
}

// extractHTML strips markup and returns visible text content.
func (s *Service) extractHTML(data []byte, fileName string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn().Err(err).Str("file", fileName).Msg("HTML parse failed")
		return fmt.Sprintf("Document: %s", fileName)
	}

	doc.Find("script, style, noscript").Remove()

	text := collapseWhitespace(doc.Text())
	if text == "" {
		return fmt.Sprintf("Document: %s", fileName)
	}
	return text
}

// collapseWhitespace normalizes runs of whitespace to single spaces
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
