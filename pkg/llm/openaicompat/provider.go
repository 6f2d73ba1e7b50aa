// Package openaicompat serves any backend speaking the OpenAI chat completions
// protocol: OpenAI itself, the HuggingFace router, or a self-hosted gateway.
package openaicompat

import (
	"context"
	"errors"
	"net/http"

	"ai-study-portal-be/pkg/llm"

	"github.com/sashabaranov/go-openai"
)

const HuggingFaceRouterURL = "https://router.huggingface.co/v1"

type Provider struct {
	name   string
	model  string
	apiKey string
	client *openai.Client
}

var _ llm.LLMProvider = &Provider{}

// NewProvider builds a client for baseURL. An empty baseURL means api.openai.com.
// A missing apiKey is reported on the first call, not here.
func NewProvider(name, apiKey, baseURL, model string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{}

	return &Provider{
		name:   name,
		model:  model,
		apiKey: apiKey,
		client: openai.NewClientWithConfig(cfg),
	}
}

// NewHuggingFaceProvider targets the HuggingFace OpenAI-compatible router
func NewHuggingFaceProvider(apiKey, baseURL, model string) *Provider {
	if baseURL == "" {
		baseURL = HuggingFaceRouterURL
	}
	return NewProvider("huggingface", apiKey, baseURL, model)
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if p.apiKey == "" {
		return "", llm.MissingCredentialError(p.name)
	}

	opts := llm.ApplyOptions(llm.Options{Model: p.model, MaxTokens: 2048}, options...)

	messages := make([]openai.ChatCompletionMessage, len(history))
	for i, m := range history {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: openai.ChatMessageRoleUser, Content: prompt}}, options...)
}

// wrapError keeps only the status code; provider messages can quote the request.
func (p *Provider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return llm.StatusError(p.name, apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return llm.StatusError(p.name, reqErr.HTTPStatusCode)
	}

	return llm.TransportError(p.name, err)
}
