// -----------------------------------------------------------------------
// Mailer Service - delivers finished reports by Gmail API or SMTP
// Settings come from the JSON email config, never from the TOML file
// -----------------------------------------------------------------------

package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	mail "gopkg.in/mail.v2"
)

// DefaultSubject is used when a report has no top-level heading
const DefaultSubject = "GCP Impact Analysis"

// Attachment represents an email attachment
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is a rendered email ready for a transport
type Message struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Service sends report emails
type Service struct {
	config       *Config
	skip         bool
	pdf          interfaces.PDFService
	logger       arbor.ILogger
	gmailBaseURL string
	dial         func(m ...*mail.Message) error
}

var _ interfaces.ReportSender = (*Service)(nil)

// NewService loads the JSON email config named in emailConfig. pdf may be nil.
func NewService(emailConfig *common.EmailConfig, pdf interfaces.PDFService, logger arbor.ILogger) (*Service, error) {
	cfg, err := LoadConfig(emailConfig.ConfigPath)
	if err != nil {
		return nil, err
	}
	return newService(cfg, emailConfig.Skip, pdf, logger), nil
}

func newService(cfg *Config, skip bool, pdf interfaces.PDFService, logger arbor.ILogger) *Service {
	s := &Service{
		config:       cfg,
		skip:         skip,
		pdf:          pdf,
		logger:       logger,
		gmailBaseURL: defaultGmailBaseURL,
	}
	s.dial = s.dialSMTP
	return s
}

// Config returns the loaded email settings
func (s *Service) Config() *Config {
	return s.config
}

// IsConfigured reports whether reports would actually be sent
func (s *Service) IsConfigured() bool {
	return s.unavailableReason() == ""
}

func (s *Service) unavailableReason() string {
	switch {
	case s.skip:
		return "email skipped"
	case !s.config.Enabled:
		return "email sending is disabled in configuration"
	case len(s.config.Recipients) == 0:
		return "no recipients configured"
	case !s.gmailReady() && s.config.SMTP.Host == "":
		return "neither Gmail OAuth nor SMTP is configured"
	}
	return ""
}

// SendReport emails the markdown report at reportPath
func (s *Service) SendReport(ctx context.Context, reportPath string, tickers []string) error {
	if reason := s.unavailableReason(); reason != "" {
		s.logger.Info().Str("reason", reason).Str("report", reportPath).Msg("Report email not sent")
		return models.NewConfigurationError(reason, nil)
	}

	content, err := os.ReadFile(reportPath)
	if err != nil {
		return models.NewPersistenceError(fmt.Sprintf("cannot read report %s", reportPath), err)
	}

	msg, err := s.BuildMessage(string(content), reportPath)
	if err != nil {
		return err
	}

	start := time.Now()
	transport := "smtp"
	var id string
	if s.gmailReady() {
		transport = "gmail"
		id, err = s.sendViaGmail(ctx, msg)
	} else {
		err = s.sendViaSMTP(msg)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("transport", transport).Str("report", reportPath).Msg("Failed to send report email")
		return err
	}

	s.logger.Info().
		Str("transport", transport).
		Str("message_id", id).
		Str("subject", msg.Subject).
		Strs("tickers", tickers).
		Strs("recipients", append(append([]string{}, s.config.Recipients...), s.config.CC...)).
		Dur("elapsed", time.Since(start)).
		Msg("Report email sent")
	return nil
}

// Subject derives the subject from the first "# " heading and applies the prefix once
func (s *Service) Subject(markdown string) string {
	subject := ""
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "# ") {
			subject = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			break
		}
	}
	if subject == "" {
		subject = DefaultSubject
	}

	prefix := s.config.SubjectPrefix
	if prefix != "" && !strings.HasPrefix(subject, prefix) {
		subject = prefix + subject
	}
	return subject
}

// BuildMessage renders the report as plain text with an optional HTML alternative and PDF attachment
func (s *Service) BuildMessage(markdown, reportPath string) (*Message, error) {
	msg := &Message{
		Subject: s.Subject(markdown),
		Text:    markdown,
	}

	if s.config.HTML() {
		var buf bytes.Buffer
		md := goldmark.New(goldmark.WithExtensions(extension.GFM))
		if err := md.Convert([]byte(markdown), &buf); err != nil {
			s.logger.Warn().Err(err).Msg("Markdown to HTML conversion failed, sending plain text only")
		} else {
			msg.HTML = buf.String()
		}
	}

	if s.config.AttachPDF && s.pdf != nil {
		data, err := s.pdf.ConvertMarkdownToPDF(markdown, msg.Subject)
		if err != nil {
			s.logger.Warn().Err(err).Msg("PDF attachment could not be rendered")
		} else {
			name := strings.TrimSuffix(filepath.Base(reportPath), filepath.Ext(reportPath)) + ".pdf"
			msg.Attachments = append(msg.Attachments, Attachment{Filename: name, Content: data})
		}
	}

	return msg, nil
}

func (s *Service) fallbackSender() string {
	if s.config.SenderEmail != "" {
		return s.config.SenderEmail
	}
	if env := os.Getenv("DEFAULT_SENDER_EMAIL"); env != "" {
		return env
	}
	return s.config.SMTP.Username
}

// mimeMessage builds the multipart message shared by both transports
func (s *Service) mimeMessage(from string, msg *Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", s.config.Recipients...)
	if len(s.config.CC) > 0 {
		m.SetHeader("Cc", s.config.CC...)
	}
	m.SetHeader("Subject", msg.Subject)

	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	for _, att := range msg.Attachments {
		content := att.Content
		m.Attach(att.Filename, mail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}
	return m
}

func (s *Service) sendViaGmail(ctx context.Context, msg *Message) (string, error) {
	client, err := s.gmailClient(ctx)
	if err != nil {
		return "", err
	}

	m := s.mimeMessage(s.gmailSender(ctx, client), msg)
	var raw bytes.Buffer
	if _, err := m.WriteTo(&raw); err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return s.sendGmail(ctx, raw.Bytes(), client)
}

func (s *Service) sendViaSMTP(msg *Message) error {
	from := s.fallbackSender()
	if from == "" {
		return models.NewConfigurationError("no sender address configured for SMTP", nil)
	}
	if err := s.dial(s.mimeMessage(from, msg)); err != nil {
		return models.NewServiceError(fmt.Sprintf("SMTP delivery via %s failed", s.config.SMTP.Host), err)
	}
	return nil
}

// dialSMTP delivers through the configured SMTP server. Port 465 uses implicit TLS;
// otherwise STARTTLS is mandatory when use_tls is set and opportunistic when not.
func (s *Service) dialSMTP(m ...*mail.Message) error {
	cfg := s.config.SMTP
	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = 30 * time.Second
	if cfg.UseTLS {
		dialer.StartTLSPolicy = mail.MandatoryStartTLS
	} else {
		dialer.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return dialer.DialAndSend(m...)
}

// SendTestEmail sends a short message to verify the configured transport
func (s *Service) SendTestEmail(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "earnings-mail-test")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "test.md")
	body := "# Earnings Test Email\n\nThis is a test email to verify the email configuration is working correctly.\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return err
	}
	return s.SendReport(ctx, path, nil)
}
