package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// Option configures a Service
type Option func(*Service)

// WithRateLimitPolicy replaces the policy built from the [llm] section
func WithRateLimitPolicy(policy *RateLimitPolicy) Option {
	return func(s *Service) {
		s.rateLimit = policy
	}
}

// Service sends assembled analysis requests to Gemini or Claude.
// Clients are created lazily on first use and reused afterwards.
type Service struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger
	rateLimit    *RateLimitPolicy

	geminiTimeout time.Duration
	claudeTimeout time.Duration

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient *anthropic.Client
}

var _ interfaces.Completer = (*Service)(nil)

// NewService creates the LLM service. Timeouts are validated here; API keys are
// resolved when a provider is first used.
func NewService(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
	opts ...Option,
) (*Service, error) {
	geminiTimeout, err := parseTimeout(geminiConfig.Timeout)
	if err != nil {
		return nil, models.NewConfigurationError("invalid gemini.timeout", err)
	}
	claudeTimeout, err := parseTimeout(claudeConfig.Timeout)
	if err != nil {
		return nil, models.NewConfigurationError("invalid claude.timeout", err)
	}

	s := &Service{
		geminiConfig:  geminiConfig,
		claudeConfig:  claudeConfig,
		llmConfig:     llmConfig,
		logger:        logger,
		rateLimit:     NewRateLimitPolicy(llmConfig),
		geminiTimeout: geminiTimeout,
		claudeTimeout: claudeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Debug().
		Str("provider", string(llmConfig.Provider)).
		Str("gemini_model", geminiConfig.Model).
		Str("claude_model", claudeConfig.Model).
		Int("max_retries", s.rateLimit.MaxRetries).
		Dur("rate_limit_wait", s.rateLimit.Wait).
		Msg("LLM service initialised")

	return s, nil
}

func parseTimeout(value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-5" or "claude/claude-sonnet-4-5" -> Claude
// - "gemini-2.5-pro" or "gemini/gemini-2.5-pro" -> Gemini
// - Empty string -> the configured provider
func (s *Service) DetectProvider(model string) ProviderType {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "claude/"), strings.HasPrefix(model, "anthropic/"), strings.HasPrefix(model, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(model, "gemini/"), strings.HasPrefix(model, "google/"), strings.HasPrefix(model, "gemini-"):
		return ProviderGemini
	}

	if s.llmConfig.Provider == common.LLMProviderClaude {
		return ProviderClaude
	}
	return ProviderGemini
}

// NormalizeModel removes provider prefix from model name if present
func NormalizeModel(model string) string {
	for _, prefix := range []string{"claude/", "anthropic/", "gemini/", "google/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// DefaultModel returns the configured model for a provider
func (s *Service) DefaultModel(provider ProviderType) string {
	if provider == ProviderClaude {
		return s.claudeConfig.Model
	}
	return s.geminiConfig.Model
}

// Complete sends the request parts, in order, as a single user turn
func (s *Service) Complete(ctx context.Context, request *interfaces.CompletionRequest) (*interfaces.CompletionResponse, error) {
	if request == nil || len(request.Parts) == 0 {
		return nil, models.NewServiceError("completion request has no content", nil)
	}

	provider := s.DetectProvider(request.Model)
	model := NormalizeModel(request.Model)
	if model == "" {
		model = s.DefaultModel(provider)
	}

	s.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("part_count", len(request.Parts)).
		Msg("Generating content with provider")

	var (
		text string
		err  error
	)
	switch provider {
	case ProviderClaude:
		text, err = s.generateWithClaude(ctx, request.Parts, model)
	default:
		text, err = s.generateWithGemini(ctx, request.Parts, model)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, models.NewEmptyResponseError(fmt.Sprintf("%s returned no text", provider))
	}

	return &interfaces.CompletionResponse{
		Text:     text,
		Provider: string(provider),
		Model:    model,
	}, nil
}

// withTimeout bounds a single provider call
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// callWithRetry applies the rate-limit policy to one provider call
func (s *Service) callWithRetry(ctx context.Context, provider ProviderType, call func() error) error {
	return s.rateLimit.Do(ctx, s.logger, provider, call)
}

// Close releases provider clients
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geminiClient = nil
	s.claudeClient = nil
	return nil
}
