package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/httpclient"
	"github.com/ternarybob/earnings/internal/models"
	"golang.org/x/time/rate"
)

// Service downloads earnings documents into storage_root/ticker/year_quarter/filename.
// Files are immutable once written: an existing file is always reused.
type Service struct {
	root       string
	userAgent  string
	maxBody    int64
	client     *http.Client
	headClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// NewService creates a fetcher rooted at the first writable storage directory
func NewService(fetcherCfg *common.FetcherConfig, storageCfg *common.StorageConfig, logger arbor.ILogger) (*Service, error) {
	fallback := storageCfg.FallbackRoot
	if fallback == "" {
		fallback = common.CwdFallback("downloads")
	}
	root, err := common.EnsureWritableDir(storageCfg.Root, fallback)
	if err != nil {
		return nil, models.NewConfigurationError("no writable document storage", err)
	}
	if root != storageCfg.Root {
		logger.Warn().
			Str("configured", storageCfg.Root).
			Str("fallback", root).
			Msg("Storage root is not writable, using fallback")
	}

	client, err := httpclient.NewBrowserClient(fetcherCfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	s := &Service{
		root:       root,
		userAgent:  fetcherCfg.UserAgent,
		maxBody:    fetcherCfg.MaxBodyBytes,
		client:     client,
		headClient: httpclient.NewDefaultHTTPClient(fetcherCfg.HeadTimeout),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     logger,
	}
	if fetcherCfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(fetcherCfg.RateLimit), 1)
	}
	return s, nil
}

// Root returns the storage root in use
func (s *Service) Root() string {
	return s.root
}

// Fetch downloads every document the period links to. It never fails:
// documents that cannot be obtained are logged and left out.
func (s *Service) Fetch(ctx context.Context, ticker, year, quarter string, period models.ReleasePeriod, irSite string) models.FetchedDocuments {
	docs := make(models.FetchedDocuments)
	dir := filepath.Join(s.root, strings.ToLower(ticker), year+"_"+quarter)

	for _, docType := range models.DocumentTypes {
		rawURL := period.URLFor(docType)
		if rawURL == "" {
			continue
		}
		if IsGenericPage(rawURL, irSite) {
			s.logger.Info().
				Str("ticker", ticker).
				Str("document_type", string(docType)).
				Str("url", rawURL).
				Msg("URL is the investor relations page, not a document; skipping")
			continue
		}

		doc, err := s.download(ctx, rawURL, dir, func(u *url.URL) string {
			return s.synthesizeFilename(ctx, u, ticker, year, quarter, docType)
		})
		if err != nil {
			s.logFetchFailure(ticker, docType, rawURL, err)
			continue
		}
		doc.DocumentType = docType
		docs[docType] = doc
	}

	if rawURL := period.CallTranscript; strings.Contains(rawURL, "seekingalpha.com") && docs[models.DocumentTypeCallTranscript] == nil {
		s.logger.Warn().
			Str("ticker", ticker).
			Msg("SeekingAlpha transcript could not be accessed; analysis will proceed with available documents")
	}

	s.logger.Info().
		Str("ticker", ticker).
		Str("period", quarter+" "+year).
		Int("documents", len(docs)).
		Msg("Document fetch complete")
	return docs
}

// FetchURL downloads one custom URL into storage_root/ticker/custom
func (s *Service) FetchURL(ctx context.Context, ticker, rawURL string, docType models.DocumentType) (*models.FetchedDocument, error) {
	if ticker == "" {
		ticker = "custom"
	}
	dir := filepath.Join(s.root, strings.ToLower(ticker), "custom")

	doc, err := s.download(ctx, rawURL, dir, func(u *url.URL) string {
		return s.synthesizeFilename(ctx, u, ticker, "custom", "", docType)
	})
	if err != nil {
		s.logFetchFailure(ticker, docType, rawURL, err)
		return nil, models.NewFetchError(fmt.Sprintf("could not fetch %s", rawURL), err)
	}
	doc.DocumentType = docType
	return doc, nil
}

// statusError is returned for non-200 responses
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
}

func (s *Service) download(ctx context.Context, rawURL, dir string, fallbackName func(*url.URL) string) (*models.FetchedDocument, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid document URL %q", rawURL)
	}

	filename := filenameFromURL(u)
	if filename == "" {
		filename = fallbackName(u)
	}
	dest := filepath.Join(dir, filename)

	if info, err := os.Stat(dest); err == nil && !info.IsDir() {
		s.logger.Info().Str("path", dest).Msg("File already exists, reusing")
		return &models.FetchedDocument{
			SourceURL: rawURL,
			LocalPath: dest,
			MIMEType:  common.DetectMIMEType(dest),
			ByteSize:  info.Size(),
			Reused:    true,
		}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpclient.SetBrowserHeaders(req, s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	// Write to a temp file in the target directory, then rename into place
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return nil, fmt.Errorf("could not create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	written, err := io.Copy(tmp, io.LimitReader(resp.Body, s.maxBody+1))
	closeErr := tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to write %s: %w", tmpName, closeErr)
	}
	if written > s.maxBody {
		return nil, fmt.Errorf("document exceeds %d bytes", s.maxBody)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return nil, fmt.Errorf("failed to move download into place: %w", err)
	}

	// Same detection as the reuse path so a cached file reports the same type
	mimeType := common.DetectMIMEType(dest)

	s.logger.Info().
		Str("url", rawURL).
		Str("path", dest).
		Int64("bytes", written).
		Msg("Downloaded document")

	return &models.FetchedDocument{
		SourceURL: rawURL,
		LocalPath: dest,
		MIMEType:  mimeType,
		ByteSize:  written,
	}, nil
}

func (s *Service) logFetchFailure(ticker string, docType models.DocumentType, rawURL string, err error) {
	var se *statusError
	var event arbor.ILogEvent
	if errors.As(err, &se) || errors.Is(err, context.DeadlineExceeded) {
		event = s.logger.Warn()
	} else {
		event = s.logger.Error()
	}
	msg := "Failed to download document, skipping"
	if se != nil && se.Code == http.StatusForbidden {
		msg = "Access forbidden (403), skipping document"
		if strings.Contains(rawURL, "seekingalpha.com") {
			msg = "Access forbidden (403) for SeekingAlpha URL; a subscription is likely required"
		}
	}
	event.
		Str("ticker", ticker).
		Str("document_type", string(docType)).
		Str("url", rawURL).
		Err(err).
		Msg(msg)
}

// synthesizeFilename builds TICKER-Q-YEAR-Type.ext when the URL has no usable filename
func (s *Service) synthesizeFilename(ctx context.Context, u *url.URL, ticker, year, quarter string, docType models.DocumentType) string {
	ext := s.guessExtension(ctx, u)
	parts := []string{strings.ToUpper(ticker)}
	if quarter != "" {
		parts = append(parts, quarter)
	}
	parts = append(parts, year, docType.FileSlug())
	return strings.Join(parts, "-") + "." + ext
}

// guessExtension uses the URL first, then a HEAD request's Content-Type, defaulting to html
func (s *Service) guessExtension(ctx context.Context, u *url.URL) string {
	if strings.Contains(strings.ToLower(u.Path), "pdf") {
		return "pdf"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err == nil {
		httpclient.SetBrowserHeaders(req, s.userAgent)
		if resp, err := s.headClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				if ext := common.ExtensionForContentType(resp.Header.Get("Content-Type")); ext != "" {
					return ext
				}
			}
		} else {
			s.logger.Debug().Str("url", u.String()).Err(err).Msg("HEAD request failed, defaulting extension")
		}
	}
	return "html"
}

// filenameFromURL returns the last path segment when it looks like a file name
func filenameFromURL(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" || !strings.Contains(base, ".") {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	// Never let a URL escape the target directory
	base = filepath.Base(filepath.Clean(base))
	if base == "." || base == ".." || strings.ContainsAny(base, `/\`) {
		return ""
	}
	return base
}

// IsGenericPage reports whether rawURL is the company's investor relations
// landing page, or a bare site root, rather than a direct document link
func IsGenericPage(rawURL, irSite string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if strings.Trim(u.Path, "/") == "" && u.RawQuery == "" {
		return true
	}
	if irSite == "" {
		return false
	}
	ir, err := url.Parse(strings.TrimSpace(irSite))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, ir.Host) &&
		strings.TrimRight(u.Path, "/") == strings.TrimRight(ir.Path, "/") &&
		u.RawQuery == ir.RawQuery
}
