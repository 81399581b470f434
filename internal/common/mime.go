package common

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MIMETypePDF  = "application/pdf"
	MIMETypeHTML = "text/html"
	MIMETypeText = "text/plain"
	MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// MIMETypeForPath maps a file extension to the MIME type sent to analysis models.
// Unknown extensions are treated as plain text.
func MIMETypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return MIMETypePDF
	case ".txt", ".md":
		return MIMETypeText
	case ".html", ".htm":
		return MIMETypeHTML
	case ".docx", ".doc":
		return MIMETypeDOCX
	}
	return MIMETypeText
}

// DetectMIMEType returns the MIME type of a stored document. The file's leading
// bytes win over its extension, so a PDF saved as "GetDocument.aspx" is still a PDF.
func DetectMIMEType(path string) string {
	byExt := MIMETypeForPath(path)
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return byExt
	}
	switch {
	case detected.Is(MIMETypePDF):
		return MIMETypePDF
	case isKnownDocumentExt(path):
		return byExt
	case detected.Is(MIMETypeHTML):
		return MIMETypeHTML
	case detected.Is(MIMETypeDOCX):
		return MIMETypeDOCX
	}
	return byExt
}

func isKnownDocumentExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md", ".html", ".htm", ".docx", ".doc":
		return true
	}
	return false
}

// ExtensionForContentType returns a file extension (without the dot) for a
// Content-Type header value, or "" when the type is not recognised
func ExtensionForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case MIMETypePDF, "application/x-pdf":
		return "pdf"
	case MIMETypeHTML, "application/xhtml+xml":
		return "html"
	case MIMETypeText:
		return "txt"
	case MIMETypeDOCX:
		return "docx"
	}
	return ""
}

// IsPDF reports whether a path or MIME type refers to a PDF
func IsPDF(pathOrMIME string) bool {
	s := strings.ToLower(pathOrMIME)
	return s == MIMETypePDF || strings.HasSuffix(s, ".pdf")
}

// IsHTML reports whether a path or MIME type refers to HTML
func IsHTML(pathOrMIME string) bool {
	s := strings.ToLower(pathOrMIME)
	return s == MIMETypeHTML || strings.HasSuffix(s, ".html") || strings.HasSuffix(s, ".htm")
}
