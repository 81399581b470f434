package models

import "strings"

// DocumentType identifies which earnings document a file holds
type DocumentType string

const (
	DocumentTypeEarningsRelease DocumentType = "earnings_release"
	DocumentTypeCallTranscript  DocumentType = "call_transcript"
)

// DocumentTypes lists the fetchable document types in fetch and prompt order
var DocumentTypes = []DocumentType{DocumentTypeEarningsRelease, DocumentTypeCallTranscript}

// ParseDocumentType accepts the canonical names plus the short forms used on the command line
func ParseDocumentType(s string) (DocumentType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "earnings_release", "release", "earnings":
		return DocumentTypeEarningsRelease, true
	case "call_transcript", "transcript", "call":
		return DocumentTypeCallTranscript, true
	}
	return "", false
}

// Label is the human readable, upper-case label used in prompts
func (t DocumentType) Label() string {
	switch t {
	case DocumentTypeEarningsRelease:
		return "EARNINGS RELEASE"
	case DocumentTypeCallTranscript:
		return "EARNINGS CALL TRANSCRIPT"
	}
	return strings.ToUpper(strings.ReplaceAll(string(t), "_", " "))
}

// Title is the label in title case, used in reports
func (t DocumentType) Title() string {
	switch t {
	case DocumentTypeEarningsRelease:
		return "Earnings Release"
	case DocumentTypeCallTranscript:
		return "Call Transcript"
	}
	return string(t)
}

// FileSlug is used when a filename has to be synthesized
func (t DocumentType) FileSlug() string {
	if t == DocumentTypeCallTranscript {
		return "Earnings-Call-Transcript"
	}
	return "Earnings-Release"
}

// FetchedDocument is a document present in local storage. It is never mutated after creation.
type FetchedDocument struct {
	DocumentType DocumentType `json:"document_type"`
	SourceURL    string       `json:"source_url"`
	LocalPath    string       `json:"local_path"`
	MIMEType     string       `json:"mime_type"`
	ByteSize     int64        `json:"byte_size"`
	Reused       bool         `json:"reused"` // true when an existing file satisfied the fetch
}

// FetchedDocuments maps document type to the document that was obtained
type FetchedDocuments map[DocumentType]*FetchedDocument

// Ordered returns the documents in DocumentTypes order
func (d FetchedDocuments) Ordered() []*FetchedDocument {
	out := make([]*FetchedDocument, 0, len(d))
	for _, t := range DocumentTypes {
		if doc, ok := d[t]; ok && doc != nil {
			out = append(out, doc)
		}
	}
	return out
}

// SourceDocument is an assembler input: a file on disk or content already in memory
type SourceDocument struct {
	Company      CompanyRef
	DocumentType DocumentType
	SourceURL    string
	Path         string // Read lazily when Data and Text are empty
	MIMEType     string // Derived from Path when empty
	Data         []byte // Pre-loaded bytes
	Text         string // Pre-loaded text; always embedded as text
}

// SourceFromFetched converts a fetched document into an assembler input
func SourceFromFetched(company CompanyRef, doc *FetchedDocument) SourceDocument {
	return SourceDocument{
		Company:      company,
		DocumentType: doc.DocumentType,
		SourceURL:    doc.SourceURL,
		Path:         doc.LocalPath,
		MIMEType:     doc.MIMEType,
	}
}
