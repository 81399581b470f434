package mailer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/models"
)

// SMTPConfig is the fallback transport when Gmail OAuth is not set up
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	UseTLS   bool   `json:"use_tls"`
}

// Config is the JSON email delivery file (config/email_config.json).
// String values of the form ".env:NAME" are read from the environment.
type Config struct {
	Enabled         bool       `json:"enabled"`
	Recipients      []string   `json:"recipients"`
	CC              []string   `json:"cc"`
	CredentialsPath string     `json:"credentials_path"`
	TokenPath       string     `json:"token_path"`
	SubjectPrefix   string     `json:"email_subject_prefix"`
	HTMLEnabled     *bool      `json:"html_enabled"`
	SenderEmail     string     `json:"sender_email"`
	AttachPDF       bool       `json:"attach_pdf"`
	SMTP            SMTPConfig `json:"smtp"`
}

// HTML reports whether an HTML alternative is sent (default true)
func (c *Config) HTML() bool {
	return c.HTMLEnabled == nil || *c.HTMLEnabled
}

// LoadConfig reads the email config. A missing file yields a disabled config.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		CredentialsPath: "credentials.json",
		TokenPath:       "token.json",
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(common.ExpandHome(path))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, models.NewConfigurationError(fmt.Sprintf("cannot read email config %s", path), err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, models.NewConfigurationError(fmt.Sprintf("invalid email config %s", path), err)
	}

	cfg.resolveReferences()
	return cfg, nil
}

func (c *Config) resolveReferences() {
	c.CredentialsPath = common.ResolveEnvReference(c.CredentialsPath)
	c.TokenPath = common.ResolveEnvReference(c.TokenPath)
	c.SenderEmail = common.ResolveEnvReference(c.SenderEmail)
	c.SMTP.Host = common.ResolveEnvReference(c.SMTP.Host)
	c.SMTP.Username = common.ResolveEnvReference(c.SMTP.Username)
	c.SMTP.Password = common.ResolveEnvReference(c.SMTP.Password)
	for i := range c.Recipients {
		c.Recipients[i] = common.ResolveEnvReference(c.Recipients[i])
	}
	for i := range c.CC {
		c.CC[i] = common.ResolveEnvReference(c.CC[i])
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}
