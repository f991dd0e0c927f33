package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF extracts page text from PDF bytes using pdfcpu. Any failure,
// including image-only or encrypted PDFs, yields the extraction-failed
// placeholder instead of an error.
func (s *Service) extractPDF(data []byte, fileName string) string {
	text, err := s.pdfText(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", fileName).Msg("PDF extraction failed")
		return fmt.Sprintf("Document: %s (PDF text extraction failed)", fileName)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Warn().Str("file", fileName).Msg("PDF extraction returned empty text")
		return fmt.Sprintf("Document: %s (PDF text extraction failed)", fileName)
	}

	return text
}

// pdfText writes the PDF to a temp file, extracts decoded page content
// streams with pdfcpu and pulls the text-showing operator strings from
// each page in order.
func (s *Service) pdfText(data []byte) (string, error) {
	// Unique per call; extractions run concurrently from upload goroutines.
	tmp, err := os.CreateTemp(s.tempDir, "extract_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp PDF file: %w", err)
	}
	tempFile := tmp.Name()
	defer os.Remove(tempFile)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(s.tempDir, "pages_")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	// Map extracted content files back to page numbers
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err != nil {
				continue
			}
		}
		pageTexts[pageNum] = contentStreamText(string(content))
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(text)
	}

	return builder.String(), nil
}

// contentStreamText scans a decoded PDF content stream and collects the
// literal strings fed to the Tj/TJ/'/" text-showing operators. Escape
// sequences and octal codes inside the literals are decoded; positioning
// operators are used as line separators.
func contentStreamText(stream string) string {
	var builder strings.Builder
	var literal strings.Builder
	inLiteral := false
	depth := 0

	for i := 0; i < len(stream); i++ {
		ch := stream[i]

		if !inLiteral {
			if ch == '(' {
				inLiteral = true
				depth = 1
				literal.Reset()
			} else if ch == 'T' && i+1 < len(stream) && (stream[i+1] == 'd' || stream[i+1] == '*') {
				// Text positioning: treat as a soft line break
				if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
					builder.WriteString("\n")
				}
				i++
			}
			continue
		}

		switch ch {
		case '\\':
			if i+1 >= len(stream) {
				continue
			}
			i++
			esc := stream[i]
			switch esc {
			case 'n':
				literal.WriteByte('\n')
			case 'r':
				literal.WriteByte('\r')
			case 't':
				literal.WriteByte('\t')
			case '(', ')', '\\':
				literal.WriteByte(esc)
			default:
				// Octal escape \ddd (up to three digits)
				if esc >= '0' && esc <= '7' {
					oct := string(esc)
					for len(oct) < 3 && i+1 < len(stream) && stream[i+1] >= '0' && stream[i+1] <= '7' {
						i++
						oct += string(stream[i])
					}
					if code, err := strconv.ParseInt(oct, 8, 32); err == nil {
						literal.WriteByte(byte(code))
					}
				} else {
					literal.WriteByte(esc)
				}
			}
		case '(':
			depth++
			literal.WriteByte(ch)
		case ')':
			depth--
			if depth == 0 {
				inLiteral = false
				builder.WriteString(literal.String())
				builder.WriteString(" ")
			} else {
				literal.WriteByte(ch)
			}
		default:
			literal.WriteByte(ch)
		}
	}

	return builder.String()
}
