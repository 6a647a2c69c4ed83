// Package judge provides model-assisted completeness judges for consultations.
package judge

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/campaign-consult/internal/consult"
)

// Providers accepted by New.
const (
	ProviderNone       = "none"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Default endpoints and models.
const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultOpenRouterModel   = "openai/gpt-4o-mini"
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultTemperature       = 0.2
	DefaultMaxRetries        = 2
)

// Config selects and configures a judge.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxRetries  int
	HTTPClient  *http.Client
}

// New returns the judge for cfg.Provider, or nil when judging is disabled.
func New(ctx context.Context, cfg Config) (consult.Judge, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	switch provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI, ProviderOpenRouter:
		base, model := DefaultOpenAIBaseURL, DefaultOpenAIModel
		if provider == ProviderOpenRouter {
			base, model = DefaultOpenRouterBaseURL, DefaultOpenRouterModel
		}
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("%s judge: API key is required unless a base URL is set", provider)
		}
		j, err := NewOpenAI(provider, withDefaults(cfg, base, model))
		if err != nil {
			return nil, err
		}
		return j, nil
	case ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		j, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown judge provider %q", cfg.Provider)
	}
}

func withDefaults(cfg Config, baseURL, model string) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	return cfg
}

// backoff returns the wait before retry attempt n (1-based), with jitter.
func backoff(base time.Duration, n int) time.Duration {
	d := base << (n - 1)
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// verdictSchema is the JSON schema judges are asked to answer with.
var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"has_enough_info": map[string]any{"type": "boolean"},
		"missing_critical_info": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"quality_assessment": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"goal_clarity":            map[string]any{"type": "number"},
				"audience_specificity":    map[string]any{"type": "number"},
				"budget_adequacy":         map[string]any{"type": "number"},
				"channel_appropriateness": map[string]any{"type": "number"},
				"overall_viability":       map[string]any{"type": "number"},
			},
			"required": []string{
				"goal_clarity", "audience_specificity", "budget_adequacy",
				"channel_appropriateness", "overall_viability",
			},
			"additionalProperties": false,
		},
		"reasoning": map[string]any{"type": "string"},
		"recommendations": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"confidence_score": map[string]any{"type": "number"},
	},
	"required": []string{
		"has_enough_info", "missing_critical_info", "quality_assessment",
		"reasoning", "recommendations", "confidence_score",
	},
	"additionalProperties": false,
}
