package assembler

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/models"
)

// DefaultSingleTemplate is used when no prompt file is configured or present
const DefaultSingleTemplate = `You are a strategic analyst for Google Cloud Platform, analyzing {company_name}'s {quarter} {year} earnings documents.

Create an email-ready analysis that combines insights from all provided documents, focusing on:

## Financial Overview
- Key financial results with cloud market implications
- YoY growth rates in relevant areas (revenue, profit, R&D)

## Cloud Strategy and Competitive Position
- Current cloud strategy and market position
- Strategic direction changes or investments
- Competitive positioning against Google Cloud

## Google and GCP Mentions
- For each Google or GCP mention, include:
  * Document type (earnings release/call transcript)
  * Exact location (page, section, speaker)
  * Direct quote
  * Strategic implications

## Technology and AI Investments
- Technology investments that might affect cloud adoption
- AI/ML initiatives that could complement or compete with GCP offerings
- Data center expansions or efficiency improvements
- Enterprise sales strategy changes relevant to cloud providers

## Customer and Partner Intelligence
- Notable customer wins or losses in cloud services
- Partner ecosystem developments relevant to cloud
- Changes in enterprise customer spending patterns

## Strategic Implications for Google/GCP
- Opportunities for Google Cloud based on these earnings documents
- Potential threats to Google Cloud's market position
- Recommended actions for GCP leadership

Format as clean, professional markdown suitable for immediate email distribution.
Be concise, data-driven, and actionable, focusing on strategic implications.
For each insight, specify the exact source (document type and location, such as page or speaker) and quote directly where relevant.

IMPORTANT: Do NOT include phrases like "Executive Summary" or "Here is an analysis of..." in your response.
Start directly with the content and ensure the analysis is self-contained and ready to be sent as is.`

// DefaultComparativeTemplate is the dedicated comparative instruction
const DefaultComparativeTemplate = `You are a strategic analyst for Google Cloud Platform, comparing the {quarter} {year} earnings documents of {company_count} companies: {companies}.

Each document above is labelled with its COMPANY and DOCUMENT TYPE. Create an email-ready comparative analysis, contrasting the companies in every section:

## Financial Overview
- Key financial results for each company side by side, with cloud market implications
- Relative YoY growth in revenue, profit and R&D

## Cloud Strategy and Competitive Position
- How each company's cloud strategy and market position differ
- Which company is gaining or losing ground, and against whom

## Technology and AI Investments
- Contrasting AI/ML, infrastructure and data center investments
- Where investments complement or compete with GCP offerings

## Customer and Partner Intelligence
- Customer wins/losses and partner developments per company
- Diverging enterprise spending patterns

## Strategic Implications for Google/GCP
- Opportunities and threats created by the differences between these companies
- Recommended actions for GCP leadership

## Comparison Matrix
- A markdown table with one column per company and one row per key metric or theme

For each insight, name the company and the exact source (document type and location, such as page or speaker) and quote directly where relevant.
Start directly with the content; do not add an introduction.`

// comparisonDirectives are appended to the single-company template in augment mode
const comparisonDirectives = `

COMPARATIVE ANALYSIS INSTRUCTIONS:
The documents above cover {company_count} companies: {companies}. Each document is labelled with its COMPANY.
- Address every section above for all companies, contrasting them directly rather than describing each in isolation.
- Attribute every figure and quote to its company and source document.
- Finish with a "## Comparison Matrix" section: a markdown table with one column per company and one row per key metric or theme.`

// Prompts renders instruction blocks from configurable templates
type Prompts struct {
	single          string
	comparative     string
	comparativeMode string
}

// LoadPrompts reads templates from the configured files, falling back to the built-in defaults
func LoadPrompts(cfg *common.PromptConfig, logger arbor.ILogger) (*Prompts, error) {
	single, err := readTemplate(cfg.Path, DefaultSingleTemplate, logger)
	if err != nil {
		return nil, err
	}
	comparative, err := readTemplate(cfg.ComparativePath, DefaultComparativeTemplate, logger)
	if err != nil {
		return nil, err
	}

	mode := cfg.ComparativeMode
	if mode == "" {
		mode = "augment"
	}
	return &Prompts{single: single, comparative: comparative, comparativeMode: mode}, nil
}

// NewPrompts builds prompts from in-memory templates; empty templates use the defaults
func NewPrompts(single, comparative, comparativeMode string) *Prompts {
	if strings.TrimSpace(single) == "" {
		single = DefaultSingleTemplate
	}
	if strings.TrimSpace(comparative) == "" {
		comparative = DefaultComparativeTemplate
	}
	if comparativeMode == "" {
		comparativeMode = "augment"
	}
	return &Prompts{single: single, comparative: comparative, comparativeMode: comparativeMode}
}

func readTemplate(path, fallback string, logger arbor.ILogger) (string, error) {
	if path == "" {
		return fallback, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug().Str("path", path).Msg("Prompt template not found, using built-in default")
		return fallback, nil
	}
	if err != nil {
		return "", models.NewConfigurationError(fmt.Sprintf("cannot read prompt template %s", path), err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return fallback, nil
	}
	return string(raw), nil
}

// Instruction renders the closing instruction block for a mode and period
func (p *Prompts) Instruction(mode models.AnalysisMode, quarter, year string) string {
	companies := mode.Companies()

	names := make([]string, 0, len(companies))
	for _, c := range companies {
		names = append(names, displayName(c))
	}

	values := map[string]string{
		"{quarter}":       quarter,
		"{year}":          year,
		"{companies}":     joinNames(names),
		"{company_count}": strconv.Itoa(len(companies)),
	}

	var template string
	switch mode.(type) {
	case models.ComparativeMode:
		values["{company_name}"] = joinNames(names)
		if p.comparativeMode == "dedicated" {
			template = p.comparative
		} else {
			template = p.single + comparisonDirectives
		}
	default:
		if len(companies) > 0 {
			values["{company_name}"] = companies[0].Name
			if values["{company_name}"] == "" {
				values["{company_name}"] = companies[0].Ticker
			}
		}
		template = p.single
	}

	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func displayName(c models.CompanyRef) string {
	switch {
	case c.Name == "":
		return c.Ticker
	case c.Ticker == "":
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, strings.ToUpper(c.Ticker))
}

// joinNames renders "A", "A and B", "A, B and C"
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
