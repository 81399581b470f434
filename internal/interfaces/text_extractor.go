package interfaces

import "context"

// TextExtractor turns a stored document into plain text
type TextExtractor interface {
	// ExtractText returns the text of a PDF with pages separated by a blank line
	ExtractText(ctx context.Context, path string) (string, error)

	// ExtractTextFromBytes does the same for a PDF held in memory
	ExtractTextFromBytes(ctx context.Context, content []byte) (string, error)

	// PageCount returns the number of pages without extracting text
	PageCount(ctx context.Context, path string) (int, error)
}

// TransformService converts fetched HTML pages to readable markdown
type TransformService interface {
	// HTMLToMarkdown converts HTML content to markdown.
	// baseURL is used for resolving relative links.
	HTMLToMarkdown(html string, baseURL string) (string, error)

	// ValidateHTML checks if the input looks like HTML
	ValidateHTML(content string) error
}

// PDFService renders reports to PDF
type PDFService interface {
	// ConvertMarkdownToPDF converts markdown content to a PDF byte slice
	ConvertMarkdownToPDF(markdown, title string) ([]byte, error)
}
