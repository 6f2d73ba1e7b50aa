package factory

import (
	"fmt"

	"ai-study-portal-be/pkg/llm"
	"ai-study-portal-be/pkg/llm/gemini"
	"ai-study-portal-be/pkg/llm/ollama"
	"ai-study-portal-be/pkg/llm/openaicompat"
)

// ProviderConfig carries everything any backend may need; each uses a subset
type ProviderConfig struct {
	Provider      string
	Model         string
	OllamaBaseURL string
	OpenAIBaseURL string
	OpenAIKey     string
	HFBaseURL     string
	HFKey         string
	GeminiKey     string
}

func NewLLMProvider(cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "openai":
		return openaicompat.NewProvider("openai", cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Model), nil
	case "huggingface":
		return openaicompat.NewHuggingFaceProvider(cfg.HFKey, cfg.HFBaseURL, cfg.Model), nil
	case "gemini":
		return gemini.NewProvider(cfg.GeminiKey, cfg.Model, ""), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
