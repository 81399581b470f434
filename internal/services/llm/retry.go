package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"google.golang.org/genai"
)

// RateLimitPolicy repeats a provider call that was rejected for rate limiting or
// quota. Any other failure is returned on the first attempt.
type RateLimitPolicy struct {
	MaxRetries int           // calls after the first
	Wait       time.Duration // first wait when the provider suggests none
	MaxWait    time.Duration
	Growth     float64 // wait multiplier per further retry
}

const (
	rateLimitGrowth = 1.5

	// hintMargin is added to a provider-suggested delay so the quota window has rolled over
	hintMargin = 5 * time.Second
)

// NewRateLimitPolicy builds the policy from the [llm] section
func NewRateLimitPolicy(cfg *common.LLMConfig) *RateLimitPolicy {
	maxWait := cfg.RateLimitMaxWait
	if maxWait < cfg.RateLimitWait {
		maxWait = cfg.RateLimitWait
	}
	return &RateLimitPolicy{
		MaxRetries: cfg.MaxRetries,
		Wait:       cfg.RateLimitWait,
		MaxWait:    maxWait,
		Growth:     rateLimitGrowth,
	}
}

// Do runs call until it succeeds, fails with something other than a rate limit,
// or MaxRetries is used up. The last error is returned unchanged.
func (p *RateLimitPolicy) Do(ctx context.Context, logger arbor.ILogger, provider ProviderType, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		limited, hint := rateLimited(err)
		if !limited || attempt >= p.MaxRetries {
			return err
		}

		wait := p.wait(attempt, hint)
		logger.Warn().
			Str("provider", string(provider)).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Dur("provider_hint", hint).
			Err(err).
			Msg("Rate limited, retrying API call")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// wait returns the pause before retry attempt+1. A provider hint replaces Wait
// as the starting point; the result never exceeds MaxWait.
func (p *RateLimitPolicy) wait(attempt int, hint time.Duration) time.Duration {
	d := p.Wait
	if hint > 0 {
		d = hint + hintMargin
	}
	if p.Growth > 1 {
		d = time.Duration(float64(d) * math.Pow(p.Growth, float64(attempt)))
	}
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	return d
}

// rateLimited reports whether err is a rate-limit rejection and the delay the
// provider asked for, zero when it gave none.
func rateLimited(err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		if geminiErr.Code != http.StatusTooManyRequests && geminiErr.Status != "RESOURCE_EXHAUSTED" {
			return false, 0
		}
		return true, geminiRetryDelay(geminiErr)
	}

	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) {
		if claudeErr.StatusCode != http.StatusTooManyRequests {
			return false, 0
		}
		return true, retryAfter(claudeErr.Response)
	}

	// Proxies and transports that flatten the SDK error into text
	msg := err.Error()
	if !strings.Contains(msg, "429") &&
		!strings.Contains(msg, "RESOURCE_EXHAUSTED") &&
		!strings.Contains(msg, "rate_limit_error") &&
		!strings.Contains(strings.ToLower(msg), "quota") {
		return false, 0
	}
	return true, delayInMessage(msg)
}

// geminiRetryDelay reads google.rpc.RetryInfo from the error details, then the message text
func geminiRetryDelay(err genai.APIError) time.Duration {
	for _, detail := range err.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, parseErr := time.ParseDuration(raw); parseErr == nil && d > 0 {
			return d
		}
	}
	return delayInMessage(err.Message)
}

// retryAfter reads the Retry-After header in either its seconds or HTTP-date form
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// "Please retry in 45.387061394s." or "retryDelay: 12s"
var delayPattern = regexp.MustCompile(`(?i)(?:please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

func delayInMessage(msg string) time.Duration {
	matches := delayPattern.FindStringSubmatch(msg)
	if len(matches) < 2 {
		return 0
	}
	seconds, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
