package judge

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ashureev/campaign-consult/internal/consult"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
)

// Gemini judges through the Google GenAI API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini judge. BaseURL, when set, overrides the API endpoint.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini judge: API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, temperature: float32(cfg.Temperature)}, nil
}

// Name returns the provider name.
func (g *Gemini) Name() string { return ProviderGemini }

// Judge asks Gemini for a JSON verdict.
func (g *Gemini) Judge(ctx context.Context, req consult.JudgeRequest) (*consult.Verdict, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(consult.BuildPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(consult.JudgeSystemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(g.temperature),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, apperrors.NewJudgeFailed(ProviderGemini, err)
	}
	v, err := consult.ParseVerdict(resp.Text())
	if err != nil {
		return nil, apperrors.NewJudgeFailed(ProviderGemini, err)
	}
	return v, nil
}
