package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
	"github.com/ternarybob/earnings/internal/services/resolver"
)

func TestFormatCompanies(t *testing.T) {
	acme := &models.Company{Ticker: "acme", Name: "Acme Corp"}
	rows := []companyRow{
		{Company: acme, Latest: &resolver.Resolution{Year: "2025", Quarter: "Q2", Period: models.ReleasePeriod{Date: "June 11, 2025", Time: "after-market close"}}},
		{Company: &models.Company{Ticker: "NEW", Name: "Newco"}, Latest: &resolver.Resolution{Year: "2025", Quarter: "Q1", Upcoming: true}},
		{Company: &models.Company{Ticker: "NIL", Name: "Nothing"}},
	}

	out := formatCompanies(rows)
	assert.Contains(t, out, "## Companies (3)")
	assert.Contains(t, out, "| ACME | Acme Corp | Q2 2025 | June 11, 2025 (after-market close) |")
	assert.Contains(t, out, "| NEW | Newco | Q1 2025 | upcoming |")
	assert.Contains(t, out, "| NIL | Nothing | - | - |")

	assert.Contains(t, formatCompanies(nil), "empty")
}

func TestFormatResolution(t *testing.T) {
	company := &models.Company{Ticker: "ACME", Name: "Acme Corp", IRSite: "https://ir.acme.example"}
	res := &resolver.Resolution{Year: "FY25", Quarter: "Q4", Period: models.ReleasePeriod{
		Date:            "July 30, 2025",
		EarningsRelease: "https://ir.acme.example/q4.pdf",
	}}

	out := formatResolution(company, res)
	assert.Contains(t, out, "## Acme Corp (ACME) Q4 FY25")
	assert.Contains(t, out, "https://ir.acme.example/q4.pdf")
	assert.Contains(t, out, "**IR site:** https://ir.acme.example")
}

func TestFormatBatch(t *testing.T) {
	out := formatBatch([]models.BatchOutcome{
		{Ticker: "ACME", Succeeded: true, ReportPath: "/tmp/results/ACME_2025_Q2_20250702_093000.md"},
		{Ticker: "GLBX", Error: "no documents available"},
	})
	assert.Contains(t, out, "1 of 2 succeeded")
	assert.Contains(t, out, "ACME_2025_Q2_20250702_093000.md")
	assert.Contains(t, out, "**GLBX** no documents available")
}

func TestFilterReports(t *testing.T) {
	reports := []interfaces.ReportInfo{
		{Name: "c.md", Tickers: []string{"ACME", "GLBX"}},
		{Name: "b.md", Tickers: []string{"GLBX"}},
		{Name: "a.md", Tickers: []string{"ACME"}},
	}

	acme := filterReports(reports, "ACME", 0)
	assert.Len(t, acme, 2)
	assert.Equal(t, "c.md", acme[0].Name)

	assert.Len(t, filterReports(reports, "", 2), 2)
}

func TestFormatRuns(t *testing.T) {
	started := time.Date(2025, 7, 2, 9, 30, 0, 0, time.UTC)
	out := formatRuns([]*models.RunRecord{
		{Mode: "single", Tickers: []string{"ACME"}, Year: "2025", Quarter: "Q2", Status: models.RunStatusSucceeded, ReportPath: "results/ACME.md", StartedAt: started},
		{Mode: "single", Tickers: []string{"GLBX"}, Status: models.RunStatusFailed, ErrorKind: models.KindFetch, Error: "no documents available", StartedAt: started},
	})
	assert.Contains(t, out, "2025-07-02T09:30:00Z single ACME Q2 2025 **succeeded** ACME.md")
	assert.Contains(t, out, "**failed** fetch: no documents available")
}
