package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/models"
	"golang.org/x/oauth2"
	mail "gopkg.in/mail.v2"
)

const report = "# GCP Impact Analysis: Acme Corp (ACME) - Q2 2025\n\n## Financial Overview\n\n| Metric | Value |\n|---|---|\n| Revenue | $10B |\n"

func writeReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ACME_2025_Q2_20250702_093015.md")
	require.NoError(t, os.WriteFile(path, []byte(report), 0644))
	return path
}

func smtpConfig() *Config {
	return &Config{
		Enabled:    true,
		Recipients: []string{"exec@example.com"},
		CC:         []string{"team@example.com"},
		SMTP:       SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "bot@example.com", Password: "secret"},
	}
}

type fakePDF struct{}

func (fakePDF) ConvertMarkdownToPDF(markdown, title string) ([]byte, error) {
	return []byte("%PDF-1.4 " + title), nil
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.HTML())

	t.Setenv("TEST_MAILER_CREDS", "/secure/credentials.json")
	t.Setenv("TEST_MAILER_TO", "cfo@example.com")
	path := filepath.Join(t.TempDir(), "email_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"enabled": true,
		"recipients": [".env:TEST_MAILER_TO"],
		"credentials_path": ".env:TEST_MAILER_CREDS",
		"email_subject_prefix": "[Earnings] ",
		"html_enabled": false,
		"smtp": {"host": "smtp.example.com"}
	}`), 0644))

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"cfo@example.com"}, cfg.Recipients)
	assert.Equal(t, "/secure/credentials.json", cfg.CredentialsPath)
	assert.Equal(t, "token.json", cfg.TokenPath)
	assert.False(t, cfg.HTML())
	assert.Equal(t, 587, cfg.SMTP.Port)

	require.NoError(t, os.WriteFile(path, []byte(`{"enabled":`), 0644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestSubject(t *testing.T) {
	svc := newService(&Config{SubjectPrefix: "[Earnings] "}, false, nil, arbor.NewLogger())

	assert.Equal(t, "[Earnings] GCP Impact Analysis: Acme Corp (ACME) - Q2 2025", svc.Subject(report))
	assert.Equal(t, "[Earnings] Already", svc.Subject("# [Earnings] Already\n"))
	assert.Equal(t, "[Earnings] GCP Impact Analysis", svc.Subject("no heading here\n## Sub"))
}

func TestIsConfigured(t *testing.T) {
	logger := arbor.NewLogger()

	assert.True(t, newService(smtpConfig(), false, nil, logger).IsConfigured())
	assert.False(t, newService(smtpConfig(), true, nil, logger).IsConfigured())

	cfg := smtpConfig()
	cfg.Enabled = false
	assert.False(t, newService(cfg, false, nil, logger).IsConfigured())

	cfg = smtpConfig()
	cfg.Recipients = nil
	assert.False(t, newService(cfg, false, nil, logger).IsConfigured())

	cfg = smtpConfig()
	cfg.SMTP.Host = ""
	cfg.CredentialsPath = filepath.Join(t.TempDir(), "none.json")
	assert.False(t, newService(cfg, false, nil, logger).IsConfigured())
}

func TestBuildMessage(t *testing.T) {
	cfg := smtpConfig()
	cfg.AttachPDF = true
	svc := newService(cfg, false, fakePDF{}, arbor.NewLogger())

	msg, err := svc.BuildMessage(report, "/results/ACME_2025_Q2_20250702_093015.md")
	require.NoError(t, err)

	assert.Equal(t, report, msg.Text)
	assert.Contains(t, msg.HTML, "<h1>GCP Impact Analysis: Acme Corp (ACME) - Q2 2025</h1>")
	assert.Contains(t, msg.HTML, "<table>")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "ACME_2025_Q2_20250702_093015.pdf", msg.Attachments[0].Filename)
}

func TestSendReportViaSMTP(t *testing.T) {
	svc := newService(smtpConfig(), false, nil, arbor.NewLogger())
	var sent []*mail.Message
	svc.dial = func(m ...*mail.Message) error {
		sent = append(sent, m...)
		return nil
	}

	require.NoError(t, svc.SendReport(context.Background(), writeReport(t), []string{"ACME"}))

	require.Len(t, sent, 1)
	assert.Equal(t, []string{"bot@example.com"}, sent[0].GetHeader("From"))
	assert.Equal(t, []string{"exec@example.com"}, sent[0].GetHeader("To"))
	assert.Equal(t, []string{"team@example.com"}, sent[0].GetHeader("Cc"))
	assert.Equal(t, []string{"GCP Impact Analysis: Acme Corp (ACME) - Q2 2025"}, sent[0].GetHeader("Subject"))

	var raw bytes.Buffer
	_, err := sent[0].WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "multipart/alternative")
	assert.Contains(t, raw.String(), "text/html")
}

func TestSendReportErrors(t *testing.T) {
	svc := newService(smtpConfig(), false, nil, arbor.NewLogger())
	svc.dial = func(m ...*mail.Message) error { return errors.New("connection refused") }

	err := svc.SendReport(context.Background(), writeReport(t), nil)
	assert.ErrorIs(t, err, models.ErrService)

	err = svc.SendReport(context.Background(), filepath.Join(t.TempDir(), "missing.md"), nil)
	assert.ErrorIs(t, err, models.ErrPersistence)

	disabled := smtpConfig()
	disabled.Enabled = false
	err = newService(disabled, false, nil, arbor.NewLogger()).SendReport(context.Background(), writeReport(t), nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestSendReportViaGmailRefreshesToken(t *testing.T) {
	var raw string
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-1"}`)
	})
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"emailAddress":"analyst@example.com"}`)
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		decoded, err := base64.URLEncoding.DecodeString(body["raw"])
		require.NoError(t, err)
		raw = string(decoded)
		fmt.Fprint(w, `{"id":"msg-123"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	credentials := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(credentials, []byte(fmt.Sprintf(`{"installed":{
		"client_id":"client-id","client_secret":"client-secret",
		"auth_uri":"%[1]s/auth","token_uri":"%[1]s/token",
		"redirect_uris":["urn:ietf:wg:oauth:2.0:oob"]}}`, server.URL)), 0644))

	tokenPath := filepath.Join(dir, "token.json")
	expired, err := json.Marshal(&oauth2.Token{
		AccessToken:  "stale-token",
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tokenPath, expired, 0600))

	cfg := smtpConfig()
	cfg.SMTP = SMTPConfig{}
	cfg.CredentialsPath = credentials
	cfg.TokenPath = tokenPath
	svc := newService(cfg, false, nil, arbor.NewLogger())
	svc.gmailBaseURL = server.URL

	require.True(t, svc.IsConfigured())
	require.NoError(t, svc.SendReport(context.Background(), writeReport(t), []string{"ACME"}))

	assert.Contains(t, raw, "From: analyst@example.com")
	assert.Contains(t, raw, "Subject: GCP Impact Analysis: Acme Corp (ACME) - Q2 2025")

	saved, err := os.ReadFile(tokenPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "fresh-token")

	url, err := svc.AuthURL()
	require.NoError(t, err)
	assert.Contains(t, url, server.URL+"/auth")
	assert.Contains(t, url, "access_type=offline")
}

func TestNewServiceUsesEmailConfigPath(t *testing.T) {
	svc, err := NewService(&common.EmailConfig{ConfigPath: filepath.Join(t.TempDir(), "none.json")}, nil, arbor.NewLogger())
	require.NoError(t, err)
	assert.False(t, svc.IsConfigured())
}
