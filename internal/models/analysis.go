package models

import (
	"fmt"
	"strings"
	"time"
)

// AnalysisMode selects single-company or comparative analysis.
// Implemented only by SingleMode and ComparativeMode.
type AnalysisMode interface {
	isAnalysisMode()
	// Companies returns the companies covered, in request order
	Companies() []CompanyRef
	// Name is "single" or "comparative"
	Name() string
}

// SingleMode analyzes one company
type SingleMode struct {
	Company CompanyRef
}

func (SingleMode) isAnalysisMode() {}

// Companies returns the single company
func (m SingleMode) Companies() []CompanyRef { return []CompanyRef{m.Company} }

// Name returns "single"
func (SingleMode) Name() string { return "single" }

// ComparativeMode analyzes two or more companies in one request.
// Build it with NewComparativeMode.
type ComparativeMode struct {
	companies []CompanyRef
}

// NewComparativeMode requires at least two distinct tickers
func NewComparativeMode(companies ...CompanyRef) (ComparativeMode, error) {
	seen := make(map[string]bool, len(companies))
	var unique []CompanyRef
	for _, c := range companies {
		key := strings.ToUpper(strings.TrimSpace(c.Ticker))
		if key == "" {
			return ComparativeMode{}, fmt.Errorf("comparative analysis: empty ticker")
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		c.Ticker = key
		unique = append(unique, c)
	}
	if len(unique) < 2 {
		return ComparativeMode{}, fmt.Errorf("comparative analysis needs at least two companies, got %d", len(unique))
	}
	return ComparativeMode{companies: unique}, nil
}

func (ComparativeMode) isAnalysisMode() {}

// Companies returns a copy of the compared companies
func (m ComparativeMode) Companies() []CompanyRef {
	out := make([]CompanyRef, len(m.companies))
	copy(out, m.companies)
	return out
}

// Name returns "comparative"
func (ComparativeMode) Name() string { return "comparative" }

// AssemblyVariant is the size budget an assembly was built with
type AssemblyVariant string

const (
	AssemblyFull      AssemblyVariant = "full"
	AssemblyShortened AssemblyVariant = "shortened"
)

// PartKind distinguishes text blocks from binary blobs
type PartKind string

const (
	PartKindText   PartKind = "text"
	PartKindBinary PartKind = "binary"
)

// ContentPart is one unit of an LLM request
type ContentPart struct {
	Kind     PartKind
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartKindText, Text: text, MIMEType: "text/plain"}
}

// BinaryPart builds a binary content part
func BinaryPart(data []byte, mimeType string) ContentPart {
	return ContentPart{Kind: PartKindBinary, Data: data, MIMEType: mimeType}
}

// EmbeddingStrategy records how a document ended up in the request
type EmbeddingStrategy string

const (
	EmbedBinary    EmbeddingStrategy = "binary"
	EmbedText      EmbeddingStrategy = "text"
	EmbedTruncated EmbeddingStrategy = "truncated"
)

// EmbeddedDocument describes one document of an assembled request
type EmbeddedDocument struct {
	Company      CompanyRef
	DocumentType DocumentType
	SourceURL    string
	Strategy     EmbeddingStrategy
	ByteSize     int64
	Chars        int
}

// AnalysisRequest is an ordered list of content parts; the instruction is always last
type AnalysisRequest struct {
	Parts     []ContentPart
	Variant   AssemblyVariant
	Documents []EmbeddedDocument
}

// Instruction returns the closing instruction block
func (r *AnalysisRequest) Instruction() string {
	if r == nil || len(r.Parts) == 0 {
		return ""
	}
	return r.Parts[len(r.Parts)-1].Text
}

// Period is a resolved fiscal period
type Period struct {
	Year    string `json:"year"`
	Quarter string `json:"quarter"`
	Date    string `json:"date,omitempty"`
}

// String renders "Q2 2025"
func (p Period) String() string {
	return strings.TrimSpace(p.Quarter + " " + p.Year)
}

// DocumentRef points at a document used by an analysis
type DocumentRef struct {
	Ticker       string       `json:"ticker"`
	DocumentType DocumentType `json:"document_type"`
	URL          string       `json:"url"`
}

// AnalysisResult is the all-or-nothing outcome of one orchestrator run
type AnalysisResult struct {
	RunID         string         `json:"run_id"`
	Mode          string         `json:"mode"`
	Company       string         `json:"company"`
	Companies     []CompanyRef   `json:"companies"`
	Period        Period         `json:"period"`
	DocumentTypes []DocumentType `json:"document_types,omitempty"`
	Sources       []DocumentRef  `json:"sources,omitempty"`
	AnalysisText  string         `json:"analysis_text,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Model         string         `json:"model,omitempty"`
	Shortened     bool           `json:"shortened"` // true when the shortened retry produced the analysis
	Error         string         `json:"error,omitempty"`
	ErrorKind     ErrorKind      `json:"error_kind,omitempty"`
	ReportPath    string         `json:"report_path,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   time.Time      `json:"completed_at"`
}

// Succeeded reports whether analysis text was produced
func (r *AnalysisResult) Succeeded() bool {
	return r.Error == "" && r.AnalysisText != ""
}

// Tickers returns the upper-case tickers covered by the result
func (r *AnalysisResult) Tickers() []string {
	out := make([]string, 0, len(r.Companies))
	for _, c := range r.Companies {
		out = append(out, strings.ToUpper(c.Ticker))
	}
	return out
}

// SourceURLs maps document type to URL. Comparative results prefix keys with the ticker.
func (r *AnalysisResult) SourceURLs() map[string]string {
	out := make(map[string]string, len(r.Sources))
	for _, s := range r.Sources {
		key := string(s.DocumentType)
		if r.Mode == "comparative" {
			key = s.Ticker + " " + key
		}
		out[key] = s.URL
	}
	return out
}

// BatchOutcome is one ticker's line in a batch summary
type BatchOutcome struct {
	Ticker     string    `json:"ticker"`
	Succeeded  bool      `json:"succeeded"`
	ReportPath string    `json:"report_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
}
