package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/interfaces"
)

// PageSeparator joins the text of consecutive pages
const PageSeparator = "\n\n"

// Extractor pulls plain text out of PDFs. The ledongthuc reader is tried first;
// pdfcpu content extraction is the fallback for files it cannot decode.
type Extractor struct {
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.TextExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF text extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractText returns the text of every page, separated by a blank line
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	pages, err := e.readPages(path)
	if err == nil && strings.TrimSpace(strings.Join(pages, "")) != "" {
		return strings.Join(pages, PageSeparator), nil
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("PDF reader failed, trying content extraction")
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	pages, fallbackErr := e.extractContentPages(path)
	if fallbackErr != nil {
		if err != nil {
			return "", fmt.Errorf("failed to extract text from %s: %w", path, err)
		}
		return "", fmt.Errorf("failed to extract text from %s: %w", path, fallbackErr)
	}
	return strings.Join(pages, PageSeparator), nil
}

// ExtractTextFromBytes extracts text from PDF bytes held in memory
func (e *Extractor) ExtractTextFromBytes(ctx context.Context, content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "earnings-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp PDF file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	return e.ExtractText(ctx, tmp.Name())
}

// PageCount returns the number of pages without extracting text
func (e *Extractor) PageCount(ctx context.Context, path string) (int, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}

	e.logger.Debug().
		Str("path", path).
		Int("page_count", pdfCtx.PageCount).
		Bool("encrypted", pdfCtx.Encrypt != nil).
		Msg("Read PDF metadata")
	return pdfCtx.PageCount, nil
}

// readPages uses the ledongthuc reader; pages it cannot read are left empty
func (e *Extractor) readPages(path string) (pages []string, err error) {
	// The reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Debug().Err(err).Int("page", i).Msg("Failed to read PDF page text")
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

var contentPageRegex = regexp.MustCompile(`Content_page_(\d+)`)

// extractContentPages dumps page content streams with pdfcpu and reads the text operators
func (e *Extractor) extractContentPages(path string) ([]string, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	outDir, err := os.MkdirTemp("", "earnings-pdf-content-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}

	pageTexts := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		m := contentPageRegex.FindStringSubmatch(file.Name())
		if m == nil {
			continue
		}
		pageNum, _ := strconv.Atoi(m[1])
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] += TextFromContentStream(string(content))
	}

	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		for n := range pageTexts {
			if n > pageCount {
				pageCount = n
			}
		}
	}

	pages := make([]string, 0, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		pages = append(pages, strings.TrimSpace(pageTexts[pageNum]))
	}
	return pages, nil
}

// TextFromContentStream collects the string operands of text-showing operators
// in a page content stream. Line-moving operators become newlines.
func TextFromContentStream(stream string) string {
	var out strings.Builder
	var pending []string

	flush := func() {
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
	}

	i := 0
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteralString(stream, i)
			pending = append(pending, s)
			i = next
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case isOperatorStart(c):
			start := i
			for i < len(stream) && isOperatorChar(stream[i]) {
				i++
			}
			switch stream[start:i] {
			case "Tj", "TJ":
				flush()
			case "'", "\"":
				out.WriteByte('\n')
				flush()
			case "Td", "TD", "T*", "ET":
				pending = pending[:0]
				if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
					out.WriteByte('\n')
				}
			default:
				pending = pending[:0]
			}
		default:
			i++
		}
	}
	return out.String()
}

func isOperatorStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '\'' || c == '"' || c == '*'
}

func isOperatorChar(c byte) bool {
	return isOperatorStart(c) || (c >= '0' && c <= '9')
}

// readLiteralString reads a balanced PDF literal string starting at stream[start] == '('
func readLiteralString(stream string, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	for i < len(stream) {
		c := stream[i]
		switch c {
		case '\\':
			i++
			if i >= len(stream) {
				return sb.String(), i
			}
			switch esc := stream[i]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
			default:
				if esc >= '0' && esc <= '7' {
					end := i
					for end < len(stream) && end < i+3 && stream[end] >= '0' && stream[end] <= '7' {
						end++
					}
					v, _ := strconv.ParseUint(stream[i:end], 8, 8)
					sb.WriteByte(byte(v))
					i = end
					continue
				}
				sb.WriteByte(esc)
			}
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String(), i
}

