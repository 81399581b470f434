package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
)

const timestampLayout = "20060102_150405"

// Service writes analysis reports to the results directory
type Service struct {
	config  *common.ResultsConfig
	pdf     interfaces.PDFService
	logger  arbor.ILogger
	console io.Writer
	now     func() time.Time
}

var _ interfaces.ReportWriter = (*Service)(nil)

// NewService creates the report writer. pdf may be nil when PDF export is not needed.
func NewService(config *common.ResultsConfig, pdf interfaces.PDFService, logger arbor.ILogger) *Service {
	return &Service{
		config:  config,
		pdf:     pdf,
		logger:  logger,
		console: os.Stdout,
		now:     time.Now,
	}
}

// Dir returns the configured results directory
func (s *Service) Dir() string {
	return s.config.Dir
}

// Write renders result and saves it as markdown, trying the configured directory,
// then the fallback directory, then printing to the console.
func (s *Service) Write(result *models.AnalysisResult) (string, error) {
	generatedAt := s.now()
	markdown := Render(s.config.TitlePrefix, result, generatedAt)
	name := Filename(result, generatedAt)

	fallback := s.config.FallbackDir
	if fallback == "" {
		fallback = common.CwdFallback("results")
	}

	var lastErr error
	for _, dir := range []string{s.config.Dir, fallback} {
		if dir == "" {
			continue
		}
		path, err := writeUnique(dir, name, []byte(markdown))
		if err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Str("dir", dir).Msg("Could not save report, trying fallback")
			continue
		}

		s.logger.Info().Str("path", path).Msg("Analysis report saved")
		if s.config.ExportPDF {
			s.exportPDF(path, markdown, result)
		}
		return path, nil
	}

	s.logger.Error().Err(lastErr).Msg("No writable results directory, printing report to console")
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(s.console, "\nAnalysis Results:\n%s\n%s\n%s\n", rule, markdown, rule)
	return "", models.NewPersistenceError("no writable results directory", lastErr)
}

func (s *Service) exportPDF(mdPath, markdown string, result *models.AnalysisResult) {
	if s.pdf == nil {
		return
	}
	data, err := s.pdf.ConvertMarkdownToPDF(markdown, Title(s.config.TitlePrefix, result))
	if err != nil {
		s.logger.Warn().Err(err).Str("path", mdPath).Msg("PDF export failed")
		return
	}
	pdfPath := strings.TrimSuffix(mdPath, ".md") + ".pdf"
	if err := os.WriteFile(pdfPath, data, 0644); err != nil {
		s.logger.Warn().Err(err).Str("path", pdfPath).Msg("Failed to write PDF report")
		return
	}
	s.logger.Info().Str("path", pdfPath).Msg("PDF report saved")
}

// writeUnique creates dir/name, adding a short uuid suffix when the name is taken
func writeUnique(dir, name string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	for attempt := 0; attempt < 5; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			ext := filepath.Ext(name)
			path = filepath.Join(dir, strings.TrimSuffix(name, ext)+"_"+uuid.New().String()[:8]+ext)
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("could not find a free report name for %s", name)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9-]+`)

func sanitize(s string) string {
	s = strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(s), "-"), "-")
	if s == "" {
		return "unknown"
	}
	return s
}

// Filename returns {TICKER}_{year}_{quarter}_{ts}.md, COMPARATIVE_{T1}_{T2}_..._{year}_{quarter}_{ts}.md
// or custom_{ts}.md
func Filename(result *models.AnalysisResult, at time.Time) string {
	ts := at.Format(timestampLayout)

	switch result.Mode {
	case "custom":
		return "custom_" + ts + ".md"
	case "comparative":
		parts := []string{"COMPARATIVE"}
		for _, t := range result.Tickers() {
			parts = append(parts, sanitize(t))
		}
		parts = append(parts, sanitize(result.Period.Year), sanitize(result.Period.Quarter), ts)
		return strings.Join(parts, "_") + ".md"
	}

	ticker := "UNKNOWN"
	if tickers := result.Tickers(); len(tickers) > 0 {
		ticker = sanitize(tickers[0])
	}
	return fmt.Sprintf("%s_%s_%s_%s.md", ticker, sanitize(result.Period.Year), sanitize(result.Period.Quarter), ts)
}

var datePart = regexp.MustCompile(`^\d{8}$`)
var timePart = regexp.MustCompile(`^\d{6}$`)

// ParseFilename recovers report metadata from a report file name
func ParseFilename(name string) interfaces.ReportInfo {
	info := interfaces.ReportInfo{Name: name}
	parts := strings.Split(strings.TrimSuffix(name, filepath.Ext(name)), "_")

	if parts[0] == "custom" {
		info.Kind = "custom"
		return info
	}

	// Locate the timestamp; year and quarter precede it
	ts := -1
	for i := 1; i+1 < len(parts); i++ {
		if datePart.MatchString(parts[i]) && timePart.MatchString(parts[i+1]) {
			ts = i
			break
		}
	}

	start := 0
	info.Kind = "single"
	if parts[0] == "COMPARATIVE" {
		info.Kind = "comparative"
		start = 1
	}

	if ts < start+3 {
		// Legacy names: ticker_year_quarter_...
		if len(parts) > start {
			info.Tickers = []string{strings.ToUpper(parts[start])}
		}
		if len(parts) > start+2 {
			info.Year, info.Quarter = parts[start+1], parts[start+2]
		}
		return info
	}

	for _, t := range parts[start : ts-2] {
		info.Tickers = append(info.Tickers, strings.ToUpper(t))
	}
	info.Year, info.Quarter = parts[ts-2], parts[ts-1]
	return info
}

// ListReports returns the markdown reports in dir, newest first
func ListReports(dir string) ([]interfaces.ReportInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory %s: %w", dir, err)
	}

	var reports []interfaces.ReportInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		info := ParseFilename(entry.Name())
		info.Path = filepath.Join(dir, entry.Name())
		info.Size = fi.Size()
		info.Modified = fi.ModTime().Unix()
		reports = append(reports, info)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Modified != reports[j].Modified {
			return reports[i].Modified > reports[j].Modified
		}
		return reports[i].Name > reports[j].Name
	})
	return reports, nil
}

// LatestReport returns the newest single-company report for ticker
func LatestReport(dir, ticker string) (*interfaces.ReportInfo, error) {
	reports, err := ListReports(dir)
	if err != nil {
		return nil, err
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	for i := range reports {
		r := reports[i]
		if r.Kind == "single" && len(r.Tickers) == 1 && r.Tickers[0] == ticker {
			return &r, nil
		}
	}
	return nil, models.NewNotFoundError(fmt.Sprintf("no reports found for %s in %s", ticker, dir))
}
