package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/campaign-consult/internal/consult"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
)

const (
	defaultRetryBase   = 250 * time.Millisecond
	maxErrorBodyBytes  = 512
	maxResponseBytes   = 1 << 20
	defaultHTTPTimeout = 30 * time.Second
)

// OpenAI judges through an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	retryBase   time.Duration
	client      *http.Client
}

// NewOpenAI creates a judge for any OpenAI-compatible gateway.
func NewOpenAI(name string, cfg Config) (*OpenAI, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s judge: base URL is required", name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s judge: model is required", name)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &OpenAI{
		name:        name,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		retryBase:   defaultRetryBase,
		client:      client,
	}, nil
}

// Name returns the provider name.
func (o *OpenAI) Name() string { return o.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	Stream         bool           `json:"stream"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// statusError is a non-200 reply from the gateway.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.code, e.body)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, consult.ErrVerdictMalformed)
}

// Judge asks the model for a verdict, retrying transport failures and 5xx replies.
func (o *OpenAI) Judge(ctx context.Context, req consult.JudgeRequest) (*consult.Verdict, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: consult.JudgeSystemPrompt},
			{Role: "user", Content: consult.BuildPrompt(req)},
		},
		Temperature: o.temperature,
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "completeness_verdict",
				"strict": true,
				"schema": verdictSchema,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(o.retryBase, attempt)); err != nil {
				return nil, apperrors.NewJudgeFailed(o.name, err)
			}
		}
		content, err := o.complete(ctx, body)
		if err == nil {
			v, perr := consult.ParseVerdict(content)
			if perr != nil {
				return nil, apperrors.NewJudgeFailed(o.name, perr)
			}
			return v, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, apperrors.NewJudgeFailed(o.name, lastErr)
}

func (o *OpenAI) complete(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > maxErrorBodyBytes {
			msg = msg[:maxErrorBodyBytes]
		}
		return "", &statusError{code: resp.StatusCode, body: msg}
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("%w: parse API response: %v", consult.ErrVerdictMalformed, err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", consult.ErrVerdictMalformed)
	}
	return cr.Choices[0].Message.Content, nil
}
