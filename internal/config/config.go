// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Consultation modes and the question budget each one allows.
const (
	ModeQuick    = "quick"
	ModeBalanced = "balanced"
	ModeThorough = "thorough"
)

var modeQuestions = map[string]int{
	ModeQuick:    5,
	ModeBalanced: 8,
	ModeThorough: 12,
}

// maxQuestionsLimit caps MAX_QUESTIONS.
const maxQuestionsLimit = 50

// Config holds all application configuration.
type Config struct {
	Port               string
	GRPCHealthPort     string // empty disables the gRPC health server
	FrontendURL        string
	CORSAllowedOrigins []string
	DBPath             string
	Env                string
	LogLevel           string

	SessionTTL         time.Duration
	CompletedRetention time.Duration
	SweepInterval      time.Duration
	MaxSessions        int
	Mode               string
	MaxQuestions       int
	MaxRecoveries      int
	TemplatesPath      string
	IdempotencyTTL     time.Duration

	Judge JudgeConfig

	RedisURL        string // empty disables the Redis handoff queue
	HandoffQueue    string
	SaveTranscripts bool
	BriefRetention  time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
}

// JudgeConfig selects the model-assisted completeness judge.
type JudgeConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	mode := strings.ToLower(getEnv("CONSULTATION_MODE", ModeBalanced))
	maxQuestions := getEnvInt("MAX_QUESTIONS", 0)
	if maxQuestions <= 0 {
		maxQuestions = modeQuestions[mode]
	}

	provider := strings.ToLower(strings.TrimSpace(getEnv("JUDGE_PROVIDER", "none")))

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		GRPCHealthPort:     getEnv("GRPC_HEALTH_PORT", ""),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DBPath:             getEnv("DB_PATH", "./data/consultations.db"),
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		SessionTTL:         getEnvDuration("SESSION_TTL", 30*time.Minute),
		CompletedRetention: getEnvDuration("COMPLETED_RETENTION", 5*time.Minute),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		MaxSessions:        getEnvInt("MAX_SESSIONS", 100),
		Mode:               mode,
		MaxQuestions:       maxQuestions,
		MaxRecoveries:      getEnvInt("MAX_RECOVERIES", 3),
		TemplatesPath:      getEnv("TEMPLATES_PATH", ""),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute),

		Judge: JudgeConfig{
			Provider:    provider,
			Model:       getEnv("JUDGE_MODEL", ""),
			BaseURL:     getEnv("JUDGE_BASE_URL", ""),
			APIKey:      judgeAPIKey(provider),
			Timeout:     getEnvDuration("JUDGE_TIMEOUT", 10*time.Second),
			MaxRetries:  getEnvInt("JUDGE_MAX_RETRIES", 2),
			Temperature: getEnvFloat("JUDGE_TEMPERATURE", 0.2),
		},

		RedisURL:        getEnv("REDIS_URL", ""),
		HandoffQueue:    getEnv("HANDOFF_QUEUE", "campaign:briefs"),
		SaveTranscripts: getEnvBool("SAVE_TRANSCRIPTS", true),
		BriefRetention:  getEnvDuration("BRIEF_RETENTION", 720*time.Hour),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func judgeAPIKey(provider string) string {
	switch provider {
	case "openai":
		return getEnv("OPENAI_API_KEY", "")
	case "openrouter":
		return getEnv("OPENROUTER_API_KEY", "")
	case "gemini":
		return getEnv("GOOGLE_API_KEY", "")
	default:
		return ""
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if _, ok := modeQuestions[c.Mode]; !ok {
		return fmt.Errorf("CONSULTATION_MODE must be one of quick, balanced, thorough (got %q)", c.Mode)
	}
	if c.MaxQuestions <= 0 || c.MaxQuestions > maxQuestionsLimit {
		return fmt.Errorf("MAX_QUESTIONS must be between 1 and %d", maxQuestionsLimit)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("MAX_SESSIONS must be > 0")
	}
	if c.MaxRecoveries <= 0 {
		return fmt.Errorf("MAX_RECOVERIES must be > 0")
	}
	if c.SessionTTL <= 0 || c.CompletedRetention <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_TTL, COMPLETED_RETENTION and SWEEP_INTERVAL must be > 0")
	}
	if c.IdempotencyTTL <= 0 || c.BriefRetention <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL and BRIEF_RETENTION must be > 0")
	}
	switch c.Judge.Provider {
	case "none", "":
	case "openai", "openrouter", "gemini":
		if c.Judge.APIKey == "" && c.Judge.BaseURL == "" {
			return fmt.Errorf("JUDGE_PROVIDER %s needs an API key", c.Judge.Provider)
		}
	default:
		return fmt.Errorf("JUDGE_PROVIDER must be one of none, openai, openrouter, gemini (got %q)", c.Judge.Provider)
	}
	if c.Judge.Timeout <= 0 {
		return fmt.Errorf("JUDGE_TIMEOUT must be > 0")
	}
	if c.Judge.MaxRetries < 0 {
		return fmt.Errorf("JUDGE_MAX_RETRIES must be >= 0")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	if c.HandoffQueue == "" {
		return fmt.Errorf("HANDOFF_QUEUE cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// IsProduction returns true when APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
