package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Mode != ModeBalanced || cfg.MaxQuestions != 8 {
		t.Errorf("Mode = %q, MaxQuestions = %d; want balanced, 8", cfg.Mode, cfg.MaxQuestions)
	}
	if cfg.SessionTTL != 30*time.Minute || cfg.SweepInterval != 5*time.Minute {
		t.Errorf("SessionTTL = %v, SweepInterval = %v", cfg.SessionTTL, cfg.SweepInterval)
	}
	if cfg.Judge.Provider != "none" || cfg.Judge.MaxRetries != 2 {
		t.Errorf("Judge = %+v", cfg.Judge)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.IsDevelopment() || cfg.IsProduction() {
		t.Errorf("IsDevelopment() = %v, IsProduction() = %v", cfg.IsDevelopment(), cfg.IsProduction())
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CONSULTATION_MODE", "Thorough")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("JUDGE_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("OPENAI_API_KEY", "wrong-key")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SAVE_TRANSCRIPTS", "off")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxQuestions != 12 {
		t.Errorf("MaxQuestions = %d, want 12", cfg.MaxQuestions)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.Judge.APIKey != "or-key" {
		t.Errorf("Judge.APIKey = %q, want the OpenRouter key", cfg.Judge.APIKey)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.SaveTranscripts {
		t.Error("SaveTranscripts = true, want false")
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Errorf("RateLimitRPS = %v", cfg.RateLimitRPS)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false")
	}
}

func TestMaxQuestionsOverridesMode(t *testing.T) {
	t.Setenv("CONSULTATION_MODE", "quick")
	t.Setenv("MAX_QUESTIONS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxQuestions != 6 {
		t.Errorf("MaxQuestions = %d, want 6", cfg.MaxQuestions)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown mode", map[string]string{"CONSULTATION_MODE": "leisurely"}, "CONSULTATION_MODE"},
		{"too many questions", map[string]string{"MAX_QUESTIONS": "500"}, "MAX_QUESTIONS"},
		{"unknown judge", map[string]string{"JUDGE_PROVIDER": "oracle"}, "JUDGE_PROVIDER"},
		{"judge without key", map[string]string{"JUDGE_PROVIDER": "gemini", "GOOGLE_API_KEY": "", "JUDGE_BASE_URL": ""}, "API key"},
		{"empty port", map[string]string{"PORT": ""}, "PORT"},
		{"zero burst", map[string]string{"RATE_LIMIT_BURST": "0"}, "RATE_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), "invalid configuration") || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
