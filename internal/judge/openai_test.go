package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/campaign-consult/internal/consult"
	"github.com/ashureev/campaign-consult/internal/domain"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
)

const verdictJSON = `{"has_enough_info": true, "missing_critical_info": [], "quality_assessment": {"goal_clarity": 0.9, "audience_specificity": 0.8, "budget_adequacy": 0.7, "channel_appropriateness": 0.8, "overall_viability": 0.8}, "reasoning": "clear", "recommendations": [], "confidence_score": 0.85}`

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func testRequest() consult.JudgeRequest {
	in := domain.Intent{}
	in.Set(domain.FieldGoal, "coffee shop", domain.ConfidenceExtracted)
	return consult.JudgeRequest{
		SessionID:     "consultation_test",
		UserInput:     "promote my coffee shop",
		Intent:        in,
		QuestionCount: 3,
		MaxQuestions:  8,
	}
}

func newTestJudge(t *testing.T, url string, retries int) *OpenAI {
	t.Helper()
	j, err := NewOpenAI(ProviderOpenAI, Config{BaseURL: url, APIKey: "sk-test", Model: "test-model", MaxRetries: retries})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	j.retryBase = time.Millisecond
	return j
}

func TestOpenAIJudge(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, chatReply(verdictJSON))
	}))
	defer srv.Close()

	v, err := newTestJudge(t, srv.URL+"/", 0).Judge(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if !v.HasEnoughInfo || v.ConfidenceScore != 0.85 {
		t.Errorf("verdict = %+v", v)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request = %+v", got)
	}
	if got.ResponseFormat["type"] != "json_schema" {
		t.Errorf("response_format = %v", got.ResponseFormat)
	}
}

func TestOpenAIJudgeSalvagesProse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("Sure, here it is:\n"+verdictJSON+"\nLet me know."))
	}))
	defer srv.Close()

	v, err := newTestJudge(t, srv.URL, 0).Judge(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if !v.HasEnoughInfo {
		t.Errorf("HasEnoughInfo = false")
	}
}

func TestOpenAIJudgeRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int
		status    int
		retries   int
		wantCalls int32
		wantErr   bool
	}{
		{"recovers after 5xx", 2, http.StatusBadGateway, 2, 3, false},
		{"gives up after retries", 5, http.StatusServiceUnavailable, 2, 3, true},
		{"rate limited retries", 1, http.StatusTooManyRequests, 1, 2, false},
		{"client error is final", 5, http.StatusUnauthorized, 2, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if int(calls.Add(1)) <= tt.failures {
					http.Error(w, "upstream trouble", tt.status)
					return
				}
				fmt.Fprint(w, chatReply(verdictJSON))
			}))
			defer srv.Close()

			_, err := newTestJudge(t, srv.URL, tt.retries).Judge(context.Background(), testRequest())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Judge() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperrors.Is(err, apperrors.ErrJudgeFailed) {
				t.Errorf("error code = %v, want JUDGE_FAILED", err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestOpenAIJudgeMalformedIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"choices": []}`)
	}))
	defer srv.Close()

	_, err := newTestJudge(t, srv.URL, 2).Judge(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Judge() error = nil")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestOpenAIJudgeHonoursContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := newTestJudge(t, srv.URL, 3).Judge(ctx, testRequest())
	if err == nil {
		t.Fatal("Judge() error = nil")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Judge() ignored the deadline")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, p := range []string{"", "none", " NONE "} {
		j, err := New(ctx, Config{Provider: p})
		if err != nil || j != nil {
			t.Errorf("New(%q) = %v, %v; want nil, nil", p, j, err)
		}
	}

	j, err := New(ctx, Config{Provider: "openrouter", APIKey: "key"})
	if err != nil {
		t.Fatalf("New(openrouter) error = %v", err)
	}
	or, ok := j.(*OpenAI)
	if !ok {
		t.Fatalf("New(openrouter) = %T, want *OpenAI", j)
	}
	if or.Name() != ProviderOpenRouter || or.baseURL != DefaultOpenRouterBaseURL || or.model != DefaultOpenRouterModel {
		t.Errorf("New(openrouter) = %+v", j)
	}
	if or.temperature != DefaultTemperature {
		t.Errorf("temperature = %v, want %v", or.temperature, DefaultTemperature)
	}

	if _, err := New(ctx, Config{Provider: "openai"}); err == nil {
		t.Error("New(openai) without key or base URL succeeded")
	}
	if _, err := New(ctx, Config{Provider: "openai", BaseURL: "http://localhost:11434/v1"}); err != nil {
		t.Errorf("New(openai) for a local gateway error = %v", err)
	}
	if _, err := New(ctx, Config{Provider: "gemini"}); err == nil {
		t.Error("New(gemini) without key succeeded")
	}
	if _, err := New(ctx, Config{Provider: "claude-o-matic"}); err == nil {
		t.Error("New() accepted an unknown provider")
	}
}

func TestBackoffGrows(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	for n := 1; n <= 3; n++ {
		d := backoff(base, n)
		lo := base << (n - 1)
		if d < lo || d > lo+lo/2 {
			t.Errorf("backoff(%d) = %v, want within [%v, %v]", n, d, lo, lo+lo/2)
		}
	}
}
