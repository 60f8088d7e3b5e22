// Package llm talks to the external generation backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"sitegen/internal/config"
)

var (
	ErrNotConfigured  = errors.New("llm: generator is not configured")
	ErrUnavailable    = errors.New("llm: backend unavailable")
	ErrAuthFailed     = errors.New("llm: backend rejected credentials")
	ErrRateLimited    = errors.New("llm: rate limited by backend")
	ErrInvalidRequest = errors.New("llm: invalid request")
	ErrEmptyResponse  = errors.New("llm: empty response")
)

const DefaultSystemPrompt = `You are a professional web developer and designer. Create a complete, modern, responsive HTML5 website based on the user's description.

Requirements:
- Use modern HTML5 semantic elements
- Include embedded CSS for styling
- Make it fully responsive (mobile-first)
- Use a clean, professional design
- Include proper meta tags
- Use modern CSS features (flexbox, grid, custom properties)
- Ensure accessibility standards
- No external dependencies or scripts
- Optimize for performance

The website should be production-ready and visually appealing.`

type Request struct {
	SystemPrompt string
	Prompt       string
}

type Response struct {
	Content     string
	Model       string
	TotalTokens int64
}

// Generator makes exactly one backend call per Generate; callers decide
// about retries.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg *config.GeneratorConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	switch cfg.Provider {
	case "", "openai", "openaicompat":
		return NewOpenAI(cfg, &http.Client{Timeout: cfg.Timeout}), nil
	case "gemini":
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
