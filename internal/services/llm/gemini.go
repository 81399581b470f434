package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/models"
	"google.golang.org/genai"
)

// getGeminiClient returns a Gemini client, creating one if necessary
func (s *Service) getGeminiClient(ctx context.Context) (*genai.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.geminiClient != nil {
		return s.geminiClient, nil
	}

	apiKey, err := common.ResolveAPIKey("gemini_api_key", s.geminiConfig.APIKey)
	if err != nil || apiKey == "" {
		return nil, models.NewConfigurationError("Gemini API key is required (set GEMINI_API_KEY or gemini.api_key)", err)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.geminiConfig.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.geminiConfig.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, models.NewServiceError("failed to create Gemini client", err)
	}

	s.geminiClient = client
	return client, nil
}

// convertPartsToGemini maps content parts to one user turn: text parts as text, binaries as inline blobs
func convertPartsToGemini(parts []models.ContentPart) []*genai.Content {
	geminiParts := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case models.PartKindBinary:
			geminiParts = append(geminiParts, genai.NewPartFromBytes(part.Data, part.MIMEType))
		default:
			geminiParts = append(geminiParts, genai.NewPartFromText(part.Text))
		}
	}
	return []*genai.Content{{Role: genai.RoleUser, Parts: geminiParts}}
}

func (s *Service) generateWithGemini(ctx context.Context, parts []models.ContentPart, model string) (string, error) {
	client, err := s.getGeminiClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{}
	if s.geminiConfig.Temperature > 0 {
		config.Temperature = genai.Ptr(s.geminiConfig.Temperature)
	}
	contents := convertPartsToGemini(parts)

	var resp *genai.GenerateContentResponse
	err = s.callWithRetry(ctx, ProviderGemini, func() error {
		callCtx, cancel := withTimeout(ctx, s.geminiTimeout)
		defer cancel()

		var callErr error
		resp, callErr = client.Models.GenerateContent(callCtx, model, contents, config)
		return callErr
	})
	if err != nil {
		return "", models.NewServiceError(fmt.Sprintf("Gemini API call failed (model %s)", model), err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil
	}
	return resp.Text(), nil
}
