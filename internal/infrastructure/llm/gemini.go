package llm

import (
	"context"
	"fmt"
	"strings"

	"sitegen/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient generates through the Gemini SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

var _ Generator = (*GeminiClient)(nil)

func NewGemini(ctx context.Context, cfg *config.GeneratorConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = "gemini-1.5-flash"
	}
	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

func (g *GeminiClient) Name() string { return g.model }

func (g *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	res, err := g.generativeModel(req).GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return geminiResponse(res, g.model)
}

func (g *GeminiClient) generativeModel(req Request) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(g.temperature)
	if g.maxTokens > 0 {
		m.SetMaxOutputTokens(g.maxTokens)
	}
	if req.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	return m
}

// geminiResponse joins the text parts of the first candidate.
func geminiResponse(res *genai.GenerateContentResponse, model string) (*Response, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	out := &Response{Content: sb.String(), Model: model}
	if res.UsageMetadata != nil {
		out.TotalTokens = int64(res.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}
