package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
	"github.com/ternarybob/earnings/internal/services/assembler"
	"github.com/ternarybob/earnings/internal/services/resolver"
)

// Mode names recorded on results that are not tied to an AnalysisMode
const ModeCustom = "custom"

// RunOptions adjusts a single run
type RunOptions struct {
	Model     string // Empty selects the configured provider default
	SkipEmail bool
}

// Service drives one analysis from calendar lookup to report.
//
// RESOLVE -> FETCH -> ASSEMBLE(full) -> CALL -> [empty or error] ASSEMBLE(shortened) -> CALL -> RESULT
//
// Every outcome, including failures, is returned as an AnalysisResult.
type Service struct {
	calendar  interfaces.CalendarStore
	resolver  *resolver.Resolver
	fetcher   interfaces.DocumentFetcher
	assembler *assembler.Assembler
	completer interfaces.Completer
	reports   interfaces.ReportWriter
	sender    interfaces.ReportSender
	runs      interfaces.RunStorage
	logger    arbor.ILogger
	now       func() time.Time
}

// Option configures optional collaborators
type Option func(*Service)

// WithReportWriter stores successful analyses as reports
func WithReportWriter(w interfaces.ReportWriter) Option {
	return func(s *Service) { s.reports = w }
}

// WithReportSender emails written reports
func WithReportSender(sender interfaces.ReportSender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithRunStorage records every run in the history store
func WithRunStorage(runs interfaces.RunStorage) Option {
	return func(s *Service) { s.runs = runs }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the orchestrator
func NewService(
	calendar interfaces.CalendarStore,
	resolver *resolver.Resolver,
	fetcher interfaces.DocumentFetcher,
	assembler *assembler.Assembler,
	completer interfaces.Completer,
	logger arbor.ILogger,
	opts ...Option,
) *Service {
	s := &Service{
		calendar:  calendar,
		resolver:  resolver,
		fetcher:   fetcher,
		assembler: assembler,
		completer: completer,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs a single-company analysis of the latest release for ticker
func (s *Service) Analyze(ctx context.Context, ticker string, opts RunOptions) *models.AnalysisResult {
	result := s.newResult("single")
	result.Company = strings.ToUpper(strings.TrimSpace(ticker))
	result.Companies = []models.CompanyRef{{Ticker: result.Company}}

	company, resolution, err := s.resolve(ticker)
	if err != nil {
		return s.finish(ctx, result, err, opts)
	}
	ref := company.Ref()
	result.Company = ref.Name
	result.Companies = []models.CompanyRef{ref}
	result.Period = periodOf(resolution)

	s.logger.Info().
		Str("ticker", ref.Ticker).
		Str("company", ref.Name).
		Str("year", resolution.Year).
		Str("quarter", resolution.Quarter).
		Str("date", resolution.Period.Date).
		Bool("upcoming", resolution.Upcoming).
		Msg("Analyzing latest earnings")

	docs := s.fetcher.Fetch(ctx, ref.Ticker, resolution.Year, resolution.Quarter, resolution.Period, company.IRSite)
	if len(docs) == 0 {
		s.logger.Warn().
			Str("ticker", ref.Ticker).
			Str("ir_site", company.IRSite).
			Msg("No documents available for automatic download, check the investor relations site")
		return s.finish(ctx, result, models.NewFetchError("no documents available", nil), opts)
	}

	sources := s.collectSources(result, ref, docs)
	err = s.analyze(ctx, result, sources, models.SingleMode{Company: ref}, opts)
	return s.finish(ctx, result, err, opts)
}

// Compare runs one comparative analysis across tickers. Unknown tickers are terminal;
// companies whose documents cannot be fetched are left out of the comparison.
func (s *Service) Compare(ctx context.Context, tickers []string, opts RunOptions) *models.AnalysisResult {
	result := s.newResult("comparative")
	for _, t := range tickers {
		result.Companies = append(result.Companies, models.CompanyRef{Ticker: strings.ToUpper(strings.TrimSpace(t))})
	}

	type entry struct {
		company    *models.Company
		resolution *resolver.Resolution
	}
	entries := make([]entry, 0, len(tickers))
	refs := make([]models.CompanyRef, 0, len(tickers))
	for _, t := range tickers {
		company, resolution, err := s.resolve(t)
		if err != nil {
			return s.finish(ctx, result, err, opts)
		}
		entries = append(entries, entry{company, resolution})
		refs = append(refs, company.Ref())
	}

	mode, err := models.NewComparativeMode(refs...)
	if err != nil {
		return s.finish(ctx, result, models.NewConfigurationError(err.Error(), nil), opts)
	}
	result.Companies = mode.Companies()
	result.Company = joinTickers(result.Companies)
	result.Period = periodOf(entries[0].resolution)

	var sources []models.SourceDocument
	covered := 0
	for _, e := range entries {
		ref := e.company.Ref()
		if p := periodOf(e.resolution); p.Year != result.Period.Year || p.Quarter != result.Period.Quarter {
			s.logger.Info().
				Str("ticker", ref.Ticker).
				Str("period", p.String()).
				Str("comparison_period", result.Period.String()).
				Msg("Company's latest period differs from the comparison period")
		}

		docs := s.fetcher.Fetch(ctx, ref.Ticker, e.resolution.Year, e.resolution.Quarter, e.resolution.Period, e.company.IRSite)
		if len(docs) == 0 {
			s.logger.Warn().Str("ticker", ref.Ticker).Msg("No documents available, company left out of comparison")
			continue
		}
		covered++
		sources = append(sources, s.collectSources(result, ref, docs)...)
	}

	switch {
	case covered == 0:
		return s.finish(ctx, result, models.NewFetchError("no documents available", nil), opts)
	case covered < 2:
		return s.finish(ctx, result, models.NewFetchError("documents are available for only one company; a comparison needs at least two", nil), opts)
	}

	err = s.analyze(ctx, result, sources, mode, opts)
	return s.finish(ctx, result, err, opts)
}

// AnalyzeURL downloads one document and analyses it on its own
func (s *Service) AnalyzeURL(ctx context.Context, rawURL string, docType models.DocumentType, companyName string, opts RunOptions) *models.AnalysisResult {
	result := s.newResult(ModeCustom)
	if strings.TrimSpace(companyName) == "" {
		companyName = "Custom Company"
	}
	ref := models.CompanyRef{Ticker: "CUSTOM", Name: companyName}
	result.Company = companyName
	result.Companies = []models.CompanyRef{ref}
	result.Period = models.Period{Year: result.StartedAt.Format("2006"), Quarter: "Custom", Date: result.StartedAt.Format("January 2, 2006")}

	if rawURL == "" {
		return s.finish(ctx, result, models.NewConfigurationError("a custom URL is required", nil), opts)
	}
	if docType == "" {
		return s.finish(ctx, result, models.NewConfigurationError("a file type is required with a custom URL", nil), opts)
	}

	doc, err := s.fetcher.FetchURL(ctx, "custom", rawURL, docType)
	if err != nil {
		return s.finish(ctx, result, err, opts)
	}

	docs := models.FetchedDocuments{docType: doc}
	sources := s.collectSources(result, ref, docs)
	err = s.analyze(ctx, result, sources, models.SingleMode{Company: ref}, opts)
	return s.finish(ctx, result, err, opts)
}

// RunBatch analyses tickers one after another. A failure never stops the batch.
func (s *Service) RunBatch(ctx context.Context, tickers []string, opts RunOptions) []models.BatchOutcome {
	outcomes := make([]models.BatchOutcome, 0, len(tickers))
	for i, ticker := range tickers {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, models.BatchOutcome{
				Ticker:    ticker,
				Error:     "batch cancelled",
				ErrorKind: models.KindService,
			})
			continue
		}

		s.logger.Info().
			Str("ticker", ticker).
			Int("index", i+1).
			Int("total", len(tickers)).
			Msg("Processing batch ticker")

		result := s.Analyze(ctx, ticker, opts)
		outcomes = append(outcomes, models.BatchOutcome{
			Ticker:     ticker,
			Succeeded:  result.Succeeded(),
			ReportPath: result.ReportPath,
			Error:      result.Error,
			ErrorKind:  result.ErrorKind,
		})
	}
	return outcomes
}

func (s *Service) newResult(mode string) *models.AnalysisResult {
	return &models.AnalysisResult{
		RunID:     uuid.New().String(),
		Mode:      mode,
		StartedAt: s.now(),
	}
}

func (s *Service) resolve(ticker string) (*models.Company, *resolver.Resolution, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return nil, nil, models.NewConfigurationError("ticker is required", nil)
	}
	company, err := s.calendar.Company(ticker)
	if err != nil {
		return nil, nil, err
	}
	resolution, err := s.resolver.ResolveLatest(company)
	if err != nil {
		return nil, nil, err
	}
	return company, resolution, nil
}

// collectSources records fetched documents on the result and converts them to assembler inputs
func (s *Service) collectSources(result *models.AnalysisResult, ref models.CompanyRef, docs models.FetchedDocuments) []models.SourceDocument {
	ordered := docs.Ordered()
	sources := make([]models.SourceDocument, 0, len(ordered))
	for _, doc := range ordered {
		if !containsType(result.DocumentTypes, doc.DocumentType) {
			result.DocumentTypes = append(result.DocumentTypes, doc.DocumentType)
		}
		result.Sources = append(result.Sources, models.DocumentRef{
			Ticker:       ref.Ticker,
			DocumentType: doc.DocumentType,
			URL:          doc.SourceURL,
		})
		sources = append(sources, models.SourceFromFetched(ref, doc))
	}
	return sources
}

// analyze assembles and calls the model, retrying once with the shortened assembly
func (s *Service) analyze(ctx context.Context, result *models.AnalysisResult, sources []models.SourceDocument, mode models.AnalysisMode, opts RunOptions) error {
	quarter, year := result.Period.Quarter, result.Period.Year

	text, err := s.attempt(ctx, result, sources, mode, quarter, year, models.AssemblyFull, opts)
	if err == nil {
		result.AnalysisText = text
		return nil
	}
	if errors.Is(err, models.ErrConfiguration) || errors.Is(err, models.ErrFetch) || ctx.Err() != nil {
		return err
	}

	s.logger.Warn().
		Str("run_id", result.RunID).
		Str("kind", string(models.KindOf(err))).
		Err(err).
		Msg("Analysis attempt failed, retrying with shortened prompt")

	text, err = s.attempt(ctx, result, sources, mode, quarter, year, models.AssemblyShortened, opts)
	if err != nil {
		return err
	}
	result.AnalysisText = text
	result.Shortened = true
	return nil
}

func (s *Service) attempt(ctx context.Context, result *models.AnalysisResult, sources []models.SourceDocument, mode models.AnalysisMode, quarter, year string, variant models.AssemblyVariant, opts RunOptions) (string, error) {
	request, err := s.assembler.Assemble(ctx, sources, mode, quarter, year, variant)
	if err != nil {
		return "", err
	}

	start := s.now()
	resp, err := s.completer.Complete(ctx, &interfaces.CompletionRequest{Parts: request.Parts, Model: opts.Model})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", models.NewEmptyResponseError("model returned no analysis text")
	}

	result.Provider = resp.Provider
	result.Model = resp.Model
	s.logger.Info().
		Str("run_id", result.RunID).
		Str("variant", string(variant)).
		Str("provider", resp.Provider).
		Str("model", resp.Model).
		Int("chars", len(resp.Text)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Analysis generated")
	return resp.Text, nil
}

// finish stamps the outcome, writes the report, emails it and records the run.
// Only err decides success; persistence and email problems are logged.
func (s *Service) finish(ctx context.Context, result *models.AnalysisResult, err error, opts RunOptions) *models.AnalysisResult {
	if err != nil {
		result.AnalysisText = ""
		result.Error = models.MessageOf(err)
		result.ErrorKind = models.KindOf(err)
		s.logger.Error().
			Str("run_id", result.RunID).
			Str("company", result.Company).
			Str("kind", string(result.ErrorKind)).
			Err(err).
			Msg("Analysis failed")
	}
	result.CompletedAt = s.now()

	if result.Succeeded() && s.reports != nil {
		path, writeErr := s.reports.Write(result)
		if writeErr != nil {
			s.logger.Warn().Err(writeErr).Str("run_id", result.RunID).Msg("Report could not be saved")
		}
		result.ReportPath = path
	}

	if result.Succeeded() && result.ReportPath != "" && !opts.SkipEmail && s.sender != nil {
		s.send(ctx, result)
	}

	if s.runs != nil {
		if saveErr := s.runs.SaveRun(ctx, models.NewRunRecord(result)); saveErr != nil {
			s.logger.Warn().Err(saveErr).Str("run_id", result.RunID).Msg("Failed to record run history")
		}
	}

	return result
}

func (s *Service) send(ctx context.Context, result *models.AnalysisResult) {
	if !s.sender.IsConfigured() {
		s.logger.Info().Msg("Email delivery not configured, skipping")
		return
	}
	if err := s.sender.SendReport(ctx, result.ReportPath, result.Tickers()); err != nil {
		s.logger.Warn().Err(err).Str("report", result.ReportPath).Msg("Failed to email report")
		return
	}
	s.logger.Info().Str("report", result.ReportPath).Msg("Report emailed")
}

func periodOf(r *resolver.Resolution) models.Period {
	return models.Period{Year: r.Year, Quarter: r.Quarter, Date: r.Period.Date}
}

func containsType(types []models.DocumentType, t models.DocumentType) bool {
	for _, existing := range types {
		if existing == t {
			return true
		}
	}
	return false
}

func joinTickers(companies []models.CompanyRef) string {
	tickers := make([]string, 0, len(companies))
	for _, c := range companies {
		tickers = append(tickers, c.Ticker)
	}
	return fmt.Sprintf("Comparative: %s", strings.Join(tickers, ", "))
}
