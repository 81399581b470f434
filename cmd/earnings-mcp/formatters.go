package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
	"github.com/ternarybob/earnings/internal/services/resolver"
)

type companyRow struct {
	Company *models.Company
	Latest  *resolver.Resolution // nil when nothing resolves
}

// formatCompanies formats the calendar as a markdown table
func formatCompanies(rows []companyRow) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Companies (%d)\n\n", len(rows)))
	if len(rows) == 0 {
		sb.WriteString("The release calendar is empty.\n")
		return sb.String()
	}

	sb.WriteString("| Ticker | Name | Latest | Date |\n|---|---|---|---|\n")
	for _, r := range rows {
		latest, date := "-", "-"
		if r.Latest != nil {
			latest = strings.TrimSpace(r.Latest.Quarter + " " + r.Latest.Year)
			date = releaseDate(r.Latest)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", r.Company.Ref().Ticker, r.Company.Name, latest, date))
	}
	return sb.String()
}

func releaseDate(res *resolver.Resolution) string {
	if res.Upcoming {
		if res.Period.ExpectedDate != "" {
			return "upcoming (expected " + res.Period.ExpectedDate + ")"
		}
		return "upcoming"
	}
	if res.Period.Date == "" {
		return "-"
	}
	if res.Period.Time != "" {
		return res.Period.Date + " (" + res.Period.Time + ")"
	}
	return res.Period.Date
}

// formatResolution describes the latest period of one company
func formatResolution(company *models.Company, res *resolver.Resolution) string {
	var sb strings.Builder
	ref := company.Ref()
	sb.WriteString(fmt.Sprintf("## %s (%s) %s %s\n\n", ref.Name, ref.Ticker, res.Quarter, res.Year))
	sb.WriteString(fmt.Sprintf("**Date:** %s\n", releaseDate(res)))
	for _, docType := range models.DocumentTypes {
		if u := res.Period.URLFor(docType); u != "" {
			sb.WriteString(fmt.Sprintf("**%s:** %s\n", docType.Title(), u))
		}
	}
	if company.IRSite != "" {
		sb.WriteString(fmt.Sprintf("**IR site:** %s\n", company.IRSite))
	}
	return sb.String()
}

// formatAnalysis returns the analysis with a short header
func formatAnalysis(result *models.AnalysisResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s %s\n\n", result.Company, result.Period))
	if result.ReportPath != "" {
		sb.WriteString(fmt.Sprintf("**Report:** %s\n", filepath.Base(result.ReportPath)))
	}
	sb.WriteString(fmt.Sprintf("**Model:** %s/%s\n", result.Provider, result.Model))
	if result.Shortened {
		sb.WriteString("**Note:** produced from shortened documents\n")
	}
	sb.WriteString("\n")
	sb.WriteString(result.AnalysisText)
	sb.WriteString("\n")
	return sb.String()
}

// formatBatch lists each ticker's outcome
func formatBatch(outcomes []models.BatchOutcome) string {
	var sb strings.Builder
	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
		}
	}
	sb.WriteString(fmt.Sprintf("## Batch (%d of %d succeeded)\n\n", succeeded, len(outcomes)))
	for _, o := range outcomes {
		if o.Succeeded {
			sb.WriteString(fmt.Sprintf("- ✅ **%s** %s\n", o.Ticker, filepath.Base(o.ReportPath)))
			continue
		}
		sb.WriteString(fmt.Sprintf("- ❌ **%s** %s\n", o.Ticker, o.Error))
	}
	return sb.String()
}

func filterReports(reports []interfaces.ReportInfo, ticker string, limit int) []interfaces.ReportInfo {
	var out []interfaces.ReportInfo
	for _, r := range reports {
		if ticker != "" && !containsTicker(r.Tickers, ticker) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func containsTicker(tickers []string, ticker string) bool {
	for _, t := range tickers {
		if strings.EqualFold(t, ticker) {
			return true
		}
	}
	return false
}

// formatReports formats report listings as markdown
func formatReports(reports []interfaces.ReportInfo) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Reports (%d)\n\n", len(reports)))
	if len(reports) == 0 {
		sb.WriteString("No reports found.\n")
		return sb.String()
	}
	for _, r := range reports {
		sb.WriteString(fmt.Sprintf("- `%s` %s %s %s (%s)\n",
			r.Name,
			r.Kind,
			strings.Join(r.Tickers, ","),
			strings.TrimSpace(r.Quarter+" "+r.Year),
			time.Unix(r.Modified, 0).UTC().Format(time.RFC3339)))
	}
	return sb.String()
}

// formatRuns formats run history as markdown
func formatRuns(runs []*models.RunRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Runs (%d)\n\n", len(runs)))
	for _, r := range runs {
		line := fmt.Sprintf("- %s %s %s %s **%s**",
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Mode,
			strings.Join(r.Tickers, ","),
			strings.TrimSpace(r.Quarter+" "+r.Year),
			r.Status)
		if r.Error != "" {
			line += fmt.Sprintf(" %s: %s", r.ErrorKind, r.Error)
		} else if r.ReportPath != "" {
			line += " " + filepath.Base(r.ReportPath)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
