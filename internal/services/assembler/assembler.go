package assembler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
)

// TruncationMarker is appended to text cut at the character budget
const TruncationMarker = "\n\n[... TRUNCATED: document exceeded %d characters; the remainder was omitted ...]"

// Assembler builds LLM requests from source documents.
//
// Per document:
//   - up to BinaryThresholdBytes: binary part with its MIME type
//   - larger: extracted text (PDF pages, else UTF-8 text)
//   - text longer than the character budget: truncated with a visible marker
//
// The budget is TextBudgetChars for full assembly and ShortenedTextBudgetChars for the shortened retry.
type Assembler struct {
	config      common.AssemblerConfig
	prompts     *Prompts
	extractor   interfaces.TextExtractor
	transformer interfaces.TransformService
	logger      arbor.ILogger
}

// NewAssembler creates an assembler. transformer may be nil, in which case HTML is kept as text.
func NewAssembler(config common.AssemblerConfig, prompts *Prompts, extractor interfaces.TextExtractor, transformer interfaces.TransformService, logger arbor.ILogger) *Assembler {
	return &Assembler{
		config:      config,
		prompts:     prompts,
		extractor:   extractor,
		transformer: transformer,
		logger:      logger,
	}
}

// Assemble builds the request: a label and content part per document, then the instruction.
// Documents that cannot be read are skipped; if none remain a Fetch pipeline error is returned.
func (a *Assembler) Assemble(ctx context.Context, docs []models.SourceDocument, mode models.AnalysisMode, quarter, year string, variant models.AssemblyVariant) (*models.AnalysisRequest, error) {
	if mode == nil {
		return nil, fmt.Errorf("analysis mode is required")
	}
	if variant == "" {
		variant = models.AssemblyFull
	}
	_, comparative := mode.(models.ComparativeMode)

	request := &models.AnalysisRequest{Variant: variant}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		part, embedded, err := a.embed(ctx, doc, variant)
		if err != nil {
			a.logger.Warn().
				Str("ticker", doc.Company.Ticker).
				Str("document_type", string(doc.DocumentType)).
				Str("path", doc.Path).
				Err(err).
				Msg("Skipping document that could not be loaded")
			continue
		}

		request.Parts = append(request.Parts, models.TextPart(documentLabel(doc, comparative)), part)
		request.Documents = append(request.Documents, embedded)

		a.logger.Info().
			Str("ticker", doc.Company.Ticker).
			Str("document_type", string(doc.DocumentType)).
			Str("strategy", string(embedded.Strategy)).
			Int64("bytes", embedded.ByteSize).
			Int("chars", embedded.Chars).
			Msg("Embedded document")
	}

	if len(request.Documents) == 0 {
		return nil, models.NewFetchError("no documents available", nil)
	}

	request.Parts = append(request.Parts, models.TextPart(a.prompts.Instruction(mode, quarter, year)))
	return request, nil
}

// documentLabel precedes each document so the model can attribute sources
func documentLabel(doc models.SourceDocument, comparative bool) string {
	label := "\nDOCUMENT TYPE: " + doc.DocumentType.Label() + "\n"
	if comparative {
		label = "\nCOMPANY: " + displayName(doc.Company) + label
	}
	return label
}

func (a *Assembler) embed(ctx context.Context, doc models.SourceDocument, variant models.AssemblyVariant) (models.ContentPart, models.EmbeddedDocument, error) {
	embedded := models.EmbeddedDocument{
		Company:      doc.Company,
		DocumentType: doc.DocumentType,
		SourceURL:    doc.SourceURL,
	}

	budget := a.config.TextBudgetChars
	if variant == models.AssemblyShortened {
		budget = a.config.ShortenedTextBudgetChars
	}

	// Pre-loaded text is always embedded as text
	if doc.Text != "" {
		embedded.ByteSize = int64(len(doc.Text))
		text, truncated := Truncate(doc.Text, budget)
		return a.textPart(text, truncated, embedded)
	}

	data := doc.Data
	if data == nil {
		if doc.Path == "" {
			return models.ContentPart{}, embedded, fmt.Errorf("document has no content")
		}
		raw, err := os.ReadFile(doc.Path)
		if err != nil {
			return models.ContentPart{}, embedded, fmt.Errorf("failed to read %s: %w", doc.Path, err)
		}
		data = raw
	}
	embedded.ByteSize = int64(len(data))

	mimeType := doc.MIMEType
	if mimeType == "" {
		mimeType = common.MIMETypeForPath(doc.Path)
	}

	if embedded.ByteSize <= a.config.BinaryThresholdBytes {
		embedded.Strategy = models.EmbedBinary
		return models.BinaryPart(data, mimeType), embedded, nil
	}

	text, err := a.extractText(ctx, doc, data, mimeType)
	if err != nil {
		return models.ContentPart{}, embedded, err
	}
	text, truncated := Truncate(text, budget)
	return a.textPart(text, truncated, embedded)
}

func (a *Assembler) textPart(text string, truncated bool, embedded models.EmbeddedDocument) (models.ContentPart, models.EmbeddedDocument, error) {
	embedded.Strategy = models.EmbedText
	if truncated {
		embedded.Strategy = models.EmbedTruncated
	}
	embedded.Chars = utf8.RuneCountInString(text)
	return models.TextPart(text), embedded, nil
}

// extractText returns PDF page text or the document decoded as UTF-8
func (a *Assembler) extractText(ctx context.Context, doc models.SourceDocument, data []byte, mimeType string) (string, error) {
	if common.IsPDF(mimeType) {
		if a.extractor == nil {
			return "", fmt.Errorf("no PDF text extractor configured")
		}
		var (
			text string
			err  error
		)
		if doc.Path != "" && doc.Data == nil {
			text, err = a.extractor.ExtractText(ctx, doc.Path)
		} else {
			text, err = a.extractor.ExtractTextFromBytes(ctx, data)
		}
		if err != nil {
			return "", fmt.Errorf("failed to extract PDF text: %w", err)
		}
		return text, nil
	}

	text := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	if a.config.FlattenHTML && a.transformer != nil && common.IsHTML(mimeType) {
		flattened, err := a.transformer.HTMLToMarkdown(text, baseURL(doc.SourceURL))
		if err == nil && strings.TrimSpace(flattened) != "" {
			return flattened, nil
		}
		a.logger.Debug().Err(err).Str("path", doc.Path).Msg("HTML flattening failed, using raw text")
	}
	return text, nil
}

// Truncate cuts text to budget characters and appends the truncation marker
func Truncate(text string, budget int) (string, bool) {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:budget]) + fmt.Sprintf(TruncationMarker, budget), true
}

func baseURL(sourceURL string) string {
	if i := strings.Index(sourceURL, "://"); i >= 0 {
		if j := strings.Index(sourceURL[i+3:], "/"); j >= 0 {
			return sourceURL[:i+3+j]
		}
	}
	return sourceURL
}
