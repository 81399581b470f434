package transform

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/interfaces"
)

// Elements that never carry document content
const boilerplateSelector = "script, style, noscript, iframe, svg, nav, header, footer, form, button, aside"

// Candidate containers for the main document body, most specific first
var contentSelectors = []string{"article", "main", "[role=main]", "#content", ".content", "body"}

// Service converts fetched HTML documents (press releases, transcript pages) to markdown
type Service struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.TransformService = (*Service)(nil)

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown strips page chrome and converts the main content to markdown.
// baseURL is used for resolving relative links.
func (s *Service) HTMLToMarkdown(html string, baseURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to parse HTML, stripping tags")
		return stripHTMLTags(html), nil
	}
	doc.Find(boilerplateSelector).Remove()

	content := doc.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 && strings.TrimSpace(sel.Text()) != "" {
			content = sel
			break
		}
	}

	converter := md.NewConverter(baseURL, true, nil)
	converted := strings.TrimSpace(converter.Convert(content))
	if converted == "" {
		s.logger.Warn().
			Int("html_length", len(html)).
			Msg("HTML to markdown conversion produced empty output, using plain text")
		return collapseWhitespace(content.Text()), nil
	}

	s.logger.Debug().
		Int("html_length", len(html)).
		Int("markdown_length", len(converted)).
		Msg("Converted HTML to markdown")
	return converted, nil
}

var (
	tagRegex   = regexp.MustCompile(`<[^>]*>`)
	spaceRegex = regexp.MustCompile(`\s+`)
)

// stripHTMLTags removes tags and decodes the common entities
func stripHTMLTags(htmlStr string) string {
	cleaned := collapseWhitespace(tagRegex.ReplaceAllString(htmlStr, " "))
	return strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	).Replace(cleaned)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// ValidateHTML checks if the input looks like HTML
func (s *Service) ValidateHTML(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("empty content")
	}
	if !strings.Contains(trimmed, "<") || !strings.Contains(trimmed, ">") {
		return fmt.Errorf("content does not appear to be HTML")
	}
	return nil
}
