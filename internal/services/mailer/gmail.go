package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ternarybob/earnings/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GmailScope grants send access to the authorised mailbox
const GmailScope = "https://mail.google.com/"

const defaultGmailBaseURL = "https://gmail.googleapis.com"

func (s *Service) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(s.config.CredentialsPath)
	if err != nil {
		return nil, models.NewConfigurationError(fmt.Sprintf("cannot read Gmail credentials %s", s.config.CredentialsPath), err)
	}
	cfg, err := google.ConfigFromJSON(data, GmailScope)
	if err != nil {
		return nil, models.NewConfigurationError("invalid Gmail credentials file", err)
	}
	return cfg, nil
}

// gmailReady reports whether both the OAuth client file and a saved token exist
func (s *Service) gmailReady() bool {
	if s.config.CredentialsPath == "" || s.config.TokenPath == "" {
		return false
	}
	if _, err := os.Stat(s.config.CredentialsPath); err != nil {
		return false
	}
	_, err := os.Stat(s.config.TokenPath)
	return err == nil
}

// AuthURL returns the consent page URL used to bootstrap the Gmail token
func (s *Service) AuthURL() (string, error) {
	cfg, err := s.oauthConfig()
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL("earnings", oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// ExchangeCode trades an authorisation code for a token and saves it
func (s *Service) ExchangeCode(ctx context.Context, code string) error {
	cfg, err := s.oauthConfig()
	if err != nil {
		return err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return models.NewServiceError("failed to exchange authorisation code", err)
	}
	if err := s.saveToken(tok); err != nil {
		return err
	}
	s.logger.Info().Str("token_path", s.config.TokenPath).Msg("Gmail token saved")
	return nil
}

func (s *Service) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.config.TokenPath)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", s.config.TokenPath, err)
	}
	return tok, nil
}

func (s *Service) saveToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.config.TokenPath), 0700); err != nil {
		return models.NewPersistenceError("cannot create token directory", err)
	}
	if err := os.WriteFile(s.config.TokenPath, data, 0600); err != nil {
		return models.NewPersistenceError("cannot save Gmail token", err)
	}
	return nil
}

// gmailClient returns an authorised client, refreshing and re-saving the token when expired
func (s *Service) gmailClient(ctx context.Context) (*http.Client, error) {
	cfg, err := s.oauthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := s.loadToken()
	if err != nil {
		return nil, models.NewConfigurationError("Gmail token missing, run with -gmail-auth", err)
	}

	current, err := cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, models.NewServiceError("failed to refresh Gmail token", err)
	}
	if current.AccessToken != tok.AccessToken {
		if err := s.saveToken(current); err != nil {
			s.logger.Warn().Err(err).Msg("Refreshed Gmail token could not be saved")
		} else {
			s.logger.Debug().Msg("Gmail token refreshed")
		}
	}

	return oauth2.NewClient(ctx, cfg.TokenSource(ctx, current)), nil
}

// gmailSender returns the authorised mailbox address, falling back to the configured sender
func (s *Service) gmailSender(ctx context.Context, client *http.Client) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.gmailBaseURL+"/gmail/v1/users/me/profile", nil)
	if err == nil {
		resp, err := client.Do(req)
		if err == nil {
			defer resp.Body.Close()
			var profile struct {
				EmailAddress string `json:"emailAddress"`
			}
			if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&profile) == nil && profile.EmailAddress != "" {
				return profile.EmailAddress
			}
		}
	}
	s.logger.Warn().Msg("Could not read Gmail profile, using configured sender")
	return s.fallbackSender()
}

func (s *Service) sendGmail(ctx context.Context, raw []byte, client *http.Client) (string, error) {
	body, err := json.Marshal(map[string]string{"raw": base64.URLEncoding.EncodeToString(raw)})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gmailBaseURL+"/gmail/v1/users/me/messages/send", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", models.NewServiceError("Gmail send request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", models.NewServiceError(fmt.Sprintf("Gmail send returned status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody)), nil)
	}

	var sent struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(respBody, &sent)
	return sent.ID, nil
}
