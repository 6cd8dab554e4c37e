package ai

import (
	"context"
	"fmt"

	"github.com/kozaktomas/speaker-labeler/internal/config"
	"github.com/kozaktomas/speaker-labeler/internal/constants"
)

// Pricing per 1M tokens. Advisory, only feeds the usage report.
var (
	openAIPricing = RequestPricing{Input: 0.40, Output: 1.60}
	geminiPricing = RequestPricing{Input: 0.30, Output: 2.50}
)

// NewProvider builds a naming-assist backend by name: "openai", "gemini" or
// "ollama". An empty name means the assist is disabled and returns (nil, nil).
func NewProvider(ctx context.Context, name string, cfg *config.Config) (Provider, error) {
	switch name {
	case "":
		return nil, nil
	case constants.ProviderOpenAI:
		if cfg.OpenAI.Token == "" {
			return nil, fmt.Errorf("OPENAI_TOKEN is not set")
		}
		return NewOpenAIProvider(cfg.OpenAI.Token, openAIPricing), nil
	case constants.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, geminiPricing)
	case constants.ProviderOllama:
		return NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", name)
	}
}
