package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/models"
)

// getClaudeClient returns a Claude client, creating one if necessary
func (s *Service) getClaudeClient() (*anthropic.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claudeClient != nil {
		return s.claudeClient, nil
	}

	apiKey, err := common.ResolveAPIKey("anthropic_api_key", s.claudeConfig.APIKey)
	if err != nil || apiKey == "" {
		return nil, models.NewConfigurationError("Anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key)", err)
	}

	// Retries are handled by callWithRetry
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if s.claudeConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.claudeConfig.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	s.claudeClient = &client
	return s.claudeClient, nil
}

// convertPartsToClaude maps content parts to content blocks. PDFs become document
// blocks; other binaries are sent as text when they decode as UTF-8.
func convertPartsToClaude(parts []models.ContentPart) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		switch {
		case part.Kind != models.PartKindBinary:
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		case common.IsPDF(part.MIMEType):
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
				Data: base64.StdEncoding.EncodeToString(part.Data),
			}))
		default:
			text := string(part.Data)
			if !utf8.ValidString(text) {
				text = strings.ToValidUTF8(text, string(utf8.RuneError))
			}
			blocks = append(blocks, anthropic.NewTextBlock(text))
		}
	}
	return blocks
}

func (s *Service) generateWithClaude(ctx context.Context, parts []models.ContentPart, model string) (string, error) {
	client, err := s.getClaudeClient()
	if err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(s.claudeConfig.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(convertPartsToClaude(parts)...),
		},
	}
	if s.claudeConfig.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.claudeConfig.Temperature))
	}

	var resp *anthropic.Message
	err = s.callWithRetry(ctx, ProviderClaude, func() error {
		callCtx, cancel := withTimeout(ctx, s.claudeTimeout)
		defer cancel()

		var callErr error
		resp, callErr = client.Messages.New(callCtx, params)
		return callErr
	})
	if err != nil {
		return "", models.NewServiceError(fmt.Sprintf("Claude API call failed (model %s)", model), err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
