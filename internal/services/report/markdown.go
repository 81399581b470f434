package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/earnings/internal/models"
)

const disclaimer = "*This is an AI-generated analysis for Google Cloud executive team consumption only. Verify all information before making strategic decisions.*"

// Title returns the report heading without the leading "# "
func Title(prefix string, result *models.AnalysisResult) string {
	if prefix == "" {
		prefix = "GCP Impact Analysis"
	}
	period := result.Period.String()

	switch result.Mode {
	case "comparative":
		names := make([]string, 0, len(result.Companies))
		for _, c := range result.Companies {
			names = append(names, companyLabel(c))
		}
		return fmt.Sprintf("%s: Comparative Analysis - %s - %s", prefix, strings.Join(names, " vs "), period)
	default:
		company := result.Company
		if len(result.Companies) == 1 && result.Mode != "custom" {
			company = companyLabel(result.Companies[0])
		}
		return fmt.Sprintf("%s: %s - %s", prefix, company, period)
	}
}

// Render formats a successful analysis as the markdown report
func Render(prefix string, result *models.AnalysisResult, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("# " + Title(prefix, result) + "\n\n")

	subject := result.Company
	if result.Mode == "comparative" {
		subject = "these companies"
	}
	b.WriteString("> **EXECUTIVE SUMMARY**  \n")
	fmt.Fprintf(&b, "> This analysis examines %s's %s financial results with focus on implications for Google Cloud Platform's strategy and competitive position.\n", subject, result.Period.String())
	b.WriteString("> Review the Strategic Implications section for recommended actions.\n\n")

	if len(result.Sources) > 0 {
		b.WriteString("**Source Documents:**  \n")
		for _, src := range result.Sources {
			label := src.DocumentType.Title()
			if result.Mode == "comparative" {
				label = src.Ticker + " " + label
			}
			fmt.Fprintf(&b, "- [%s](%s)  \n", label, src.URL)
		}
	}

	date := result.Period.Date
	if date == "" {
		date = "Unknown"
	}
	fmt.Fprintf(&b, "**Earnings Date:** %s  \n\n", date)

	b.WriteString(strings.TrimSpace(result.AnalysisText))

	b.WriteString("\n\n---\n")
	model := strings.TrimSpace(result.Provider + " " + result.Model)
	if model == "" {
		model = "an AI model"
	}
	fmt.Fprintf(&b, "*Analysis generated on %s using %s*  \n", generatedAt.Format("2006-01-02 15:04:05"), model)
	b.WriteString(disclaimer + "\n")

	return b.String()
}

func companyLabel(c models.CompanyRef) string {
	switch {
	case c.Name == "":
		return c.Ticker
	case c.Ticker == "":
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, strings.ToUpper(c.Ticker))
}
