package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"google.golang.org/genai"
)

func TestRateLimited(t *testing.T) {
	retryInfo := map[string]any{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "45s"}

	tests := []struct {
		name        string
		err         error
		wantLimited bool
		wantHint    time.Duration
	}{
		{name: "nil", err: nil},
		{name: "gemini 429", err: genai.APIError{Code: 429, Message: "slow down"}, wantLimited: true},
		{name: "gemini retry info", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Details: []map[string]any{retryInfo}}, wantLimited: true, wantHint: 45 * time.Second},
		{name: "gemini hint in message", err: genai.APIError{Code: 429, Message: "Please retry in 12.5s."}, wantLimited: true, wantHint: 12500 * time.Millisecond},
		{name: "gemini wrapped", err: fmt.Errorf("generate: %w", genai.APIError{Status: "RESOURCE_EXHAUSTED"}), wantLimited: true},
		{name: "gemini bad request mentioning quota", err: genai.APIError{Code: 400, Message: "quota project not set"}},
		{
			name:        "claude retry-after",
			err:         &anthropic.Error{StatusCode: 429, Response: &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"30"}}}},
			wantLimited: true,
			wantHint:    30 * time.Second,
		},
		{name: "claude overloaded", err: &anthropic.Error{StatusCode: 529, Response: &http.Response{StatusCode: 529}}},
		{name: "plain text 429", err: errors.New("Error 429, Message: ... Please retry in 45s., Status: RESOURCE_EXHAUSTED"), wantLimited: true, wantHint: 45 * time.Second},
		{name: "plain text rate_limit_error", err: errors.New(`{"type":"rate_limit_error"}`), wantLimited: true},
		{name: "plain text server error", err: errors.New("Error 500, Message: internal")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limited, hint := rateLimited(tt.err)
			assert.Equal(t, tt.wantLimited, limited)
			assert.Equal(t, tt.wantHint, hint)
		})
	}
}

func TestRetryAfterHTTPDate(t *testing.T) {
	at := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := retryAfter(&http.Response{Header: http.Header{"Retry-After": []string{at}}})
	assert.Greater(t, d, 50*time.Second)
	assert.LessOrEqual(t, d, time.Minute)

	assert.Zero(t, retryAfter(nil))
	assert.Zero(t, retryAfter(&http.Response{Header: http.Header{"Retry-After": []string{"soon"}}}))
}

func TestRateLimitPolicyWait(t *testing.T) {
	config := common.NewDefaultConfig()
	policy := NewRateLimitPolicy(&config.LLM)

	assert.Equal(t, 3, policy.MaxRetries)
	assert.Equal(t, 45*time.Second, policy.wait(0, 0))
	assert.Equal(t, 67500*time.Millisecond, policy.wait(1, 0))
	assert.Equal(t, 90*time.Second, policy.wait(2, 0))
	assert.Equal(t, 15*time.Second, policy.wait(0, 10*time.Second))
	assert.Equal(t, 90*time.Second, policy.wait(0, 5*time.Minute))
}

func TestNewRateLimitPolicyRaisesMaxWait(t *testing.T) {
	policy := NewRateLimitPolicy(&common.LLMConfig{MaxRetries: 1, RateLimitWait: time.Minute, RateLimitMaxWait: time.Second})
	assert.Equal(t, time.Minute, policy.MaxWait)
}

func TestRateLimitPolicyDo(t *testing.T) {
	policy := &RateLimitPolicy{MaxRetries: 2, Wait: time.Millisecond, MaxWait: time.Millisecond, Growth: 1}
	limit := genai.APIError{Code: 429, Message: "quota exceeded"}
	logger := arbor.NewLogger()

	t.Run("recovers after rate limit", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), logger, ProviderGemini, func() error {
			calls++
			if calls < 3 {
				return limit
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up with the last error", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), logger, ProviderGemini, func() error {
			calls++
			return limit
		})
		assert.Equal(t, 3, calls)
		var apiErr genai.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 429, apiErr.Code)
	})

	t.Run("other errors are not repeated", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), logger, ProviderClaude, func() error {
			calls++
			return errors.New("invalid api key")
		})
		assert.EqualError(t, err, "invalid api key")
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting when cancelled", func(t *testing.T) {
		slow := &RateLimitPolicy{MaxRetries: 2, Wait: time.Hour, MaxWait: time.Hour, Growth: 1}
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := slow.Do(ctx, logger, ProviderGemini, func() error {
			calls++
			cancel()
			return limit
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
