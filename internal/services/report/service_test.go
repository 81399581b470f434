package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/models"
)

var fixedNow = time.Date(2025, 7, 2, 9, 30, 15, 0, time.UTC)

func singleResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Mode:      "single",
		Company:   "Acme Corp",
		Companies: []models.CompanyRef{{Ticker: "ACME", Name: "Acme Corp"}},
		Period:    models.Period{Year: "2025", Quarter: "Q2", Date: "July 1, 2025"},
		Sources: []models.DocumentRef{
			{Ticker: "ACME", DocumentType: models.DocumentTypeEarningsRelease, URL: "http://x/e2.pdf"},
			{Ticker: "ACME", DocumentType: models.DocumentTypeCallTranscript, URL: "http://x/t2.html"},
		},
		AnalysisText: "## Financial Overview\nRevenue grew 12%.",
		Provider:     "gemini",
		Model:        "gemini-2.5-pro",
	}
}

func comparativeResult() *models.AnalysisResult {
	r := singleResult()
	r.Mode = "comparative"
	r.Company = "Comparative: ACME, GLBX"
	r.Companies = append(r.Companies, models.CompanyRef{Ticker: "GLBX", Name: "Globex"})
	r.Sources = append(r.Sources, models.DocumentRef{Ticker: "GLBX", DocumentType: models.DocumentTypeEarningsRelease, URL: "http://y/e.pdf"})
	return r
}

type fakePDF struct {
	calls int
}

func (f *fakePDF) ConvertMarkdownToPDF(markdown, title string) ([]byte, error) {
	f.calls++
	return []byte("%PDF-1.4 " + title), nil
}

func newTestService(cfg *common.ResultsConfig, pdf *fakePDF) (*Service, *bytes.Buffer) {
	svc := NewService(cfg, pdf, arbor.NewLogger())
	if pdf == nil {
		svc.pdf = nil
	}
	console := &bytes.Buffer{}
	svc.console = console
	svc.now = func() time.Time { return fixedNow }
	return svc, console
}

func TestRender(t *testing.T) {
	out := Render("GCP Impact Analysis", singleResult(), fixedNow)

	assert.True(t, strings.HasPrefix(out, "# GCP Impact Analysis: Acme Corp (ACME) - Q2 2025\n\n"))
	assert.Contains(t, out, "> **EXECUTIVE SUMMARY**")
	assert.Contains(t, out, "This analysis examines Acme Corp's Q2 2025 financial results")
	assert.Contains(t, out, "- [Earnings Release](http://x/e2.pdf)  \n")
	assert.Contains(t, out, "- [Call Transcript](http://x/t2.html)  \n")
	assert.Contains(t, out, "**Earnings Date:** July 1, 2025")
	assert.Contains(t, out, "## Financial Overview\nRevenue grew 12%.")
	assert.Contains(t, out, "*Analysis generated on 2025-07-02 09:30:15 using gemini gemini-2.5-pro*")
	assert.Contains(t, out, "AI-generated analysis")
}

func TestRenderComparative(t *testing.T) {
	out := Render("", comparativeResult(), fixedNow)

	assert.True(t, strings.HasPrefix(out, "# GCP Impact Analysis: Comparative Analysis - Acme Corp (ACME) vs Globex (GLBX) - Q2 2025"))
	assert.Contains(t, out, "- [GLBX Earnings Release](http://y/e.pdf)")
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "ACME_2025_Q2_20250702_093015.md", Filename(singleResult(), fixedNow))
	assert.Equal(t, "COMPARATIVE_ACME_GLBX_2025_Q2_20250702_093015.md", Filename(comparativeResult(), fixedNow))
	assert.Equal(t, "custom_20250702_093015.md", Filename(&models.AnalysisResult{Mode: "custom"}, fixedNow))

	r := singleResult()
	r.Period = models.Period{Year: "FY 2025", Quarter: "Q2/H1"}
	assert.Equal(t, "ACME_FY-2025_Q2-H1_20250702_093015.md", Filename(r, fixedNow))
}

func TestParseFilename(t *testing.T) {
	info := ParseFilename("ACME_2025_Q2_20250702_093015.md")
	assert.Equal(t, "single", info.Kind)
	assert.Equal(t, []string{"ACME"}, info.Tickers)
	assert.Equal(t, "2025", info.Year)
	assert.Equal(t, "Q2", info.Quarter)

	info = ParseFilename("COMPARATIVE_ACME_GLBX_FY25_Q1_20250702_093015_1a2b3c4d.md")
	assert.Equal(t, "comparative", info.Kind)
	assert.Equal(t, []string{"ACME", "GLBX"}, info.Tickers)
	assert.Equal(t, "FY25", info.Year)
	assert.Equal(t, "Q1", info.Quarter)

	info = ParseFilename("custom_20250702_093015.md")
	assert.Equal(t, "custom", info.Kind)
	assert.Empty(t, info.Tickers)

	info = ParseFilename("amzn_2025_Q1_combined_gcp_impact.md")
	assert.Equal(t, []string{"AMZN"}, info.Tickers)
	assert.Equal(t, "Q1", info.Quarter)
}

func TestWriteAddsSuffixOnCollision(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newTestService(&common.ResultsConfig{Dir: dir}, nil)

	first, err := svc.Write(singleResult())
	require.NoError(t, err)
	second, err := svc.Write(singleResult())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "ACME_2025_Q2_20250702_093015.md"), first)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(filepath.Base(second), "ACME_2025_Q2_20250702_093015_"))

	content, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# GCP Impact Analysis: Acme Corp (ACME) - Q2 2025")
}

func TestWriteFallsBackThenPrints(t *testing.T) {
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("file, not dir"), 0644))
	fallback := t.TempDir()

	svc, _ := newTestService(&common.ResultsConfig{Dir: filepath.Join(blocked, "results"), FallbackDir: fallback}, nil)
	path, err := svc.Write(singleResult())
	require.NoError(t, err)
	assert.Equal(t, fallback, filepath.Dir(path))

	svc, console := newTestService(&common.ResultsConfig{Dir: filepath.Join(blocked, "a"), FallbackDir: filepath.Join(blocked, "b")}, nil)
	path, err = svc.Write(singleResult())
	assert.Empty(t, path)
	assert.True(t, errors.Is(err, models.ErrPersistence))
	assert.Contains(t, console.String(), "Analysis Results:")
	assert.Contains(t, console.String(), "Revenue grew 12%.")
}

func TestWriteExportsPDF(t *testing.T) {
	dir := t.TempDir()
	pdf := &fakePDF{}
	svc, _ := newTestService(&common.ResultsConfig{Dir: dir, ExportPDF: true}, pdf)

	path, err := svc.Write(singleResult())
	require.NoError(t, err)

	assert.Equal(t, 1, pdf.calls)
	data, err := os.ReadFile(strings.TrimSuffix(path, ".md") + ".pdf")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Acme Corp (ACME)")
}

func TestListAndLatestReports(t *testing.T) {
	dir := t.TempDir()
	files := []struct {
		name string
		mod  time.Time
	}{
		{"ACME_2025_Q1_20250401_080000.md", fixedNow.Add(-48 * time.Hour)},
		{"ACME_2025_Q2_20250702_093015.md", fixedNow.Add(-1 * time.Hour)},
		{"COMPARATIVE_ACME_GLBX_2025_Q2_20250702_100000.md", fixedNow},
		{"notes.txt", fixedNow},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		require.NoError(t, os.WriteFile(path, []byte("# report"), 0644))
		require.NoError(t, os.Chtimes(path, f.mod, f.mod))
	}

	reports, err := ListReports(dir)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "COMPARATIVE_ACME_GLBX_2025_Q2_20250702_100000.md", reports[0].Name)
	assert.Equal(t, "ACME_2025_Q2_20250702_093015.md", reports[1].Name)
	assert.Equal(t, int64(8), reports[1].Size)

	latest, err := LatestReport(dir, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Q2", latest.Quarter)

	_, err = LatestReport(dir, "glbx")
	assert.ErrorIs(t, err, models.ErrNotFound)

	reports, err = ListReports(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, reports)
}
