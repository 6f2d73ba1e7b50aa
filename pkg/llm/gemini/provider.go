package gemini

import (
	"context"
	"errors"
	"net/http"

	"ai-study-portal-be/pkg/llm"

	"google.golang.org/genai"
)

const (
	providerName = "gemini"
	DefaultModel = "gemini-2.0-flash"
)

// MissingKeyMessage is the operator-facing hint logged when no key is configured
const MissingKeyMessage = "Gemini API key not configured"

type Provider struct {
	model  string
	client *genai.Client
	// initErr is kept so construction never fails the process
	initErr error
}

var _ llm.LLMProvider = &Provider{}

// NewProvider creates a Gemini API client. baseURL is only set in tests.
func NewProvider(apiKey, model, baseURL string) *Provider {
	if model == "" {
		model = DefaultModel
	}
	p := &Provider{model: model}
	if apiKey == "" {
		p.initErr = llm.MissingCredentialError(providerName)
		return p
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{},
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		p.initErr = llm.ResponseError(providerName, "client initialisation failed")
		return p
	}
	p.client = client
	return p
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if p.initErr != nil {
		return "", p.initErr
	}

	opts := llm.ApplyOptions(llm.Options{Model: p.model, Temperature: 0.7}, options...)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.JSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		if m.Role == "system" {
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
			continue
		}
		role := genai.RoleUser
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	resp, err := p.client.Models.GenerateContent(ctx, opts.Model, contents, config)
	if err != nil {
		return "", wrapError(err)
	}

	return resp.Text(), nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

// wrapError maps SDK failures to an UpstreamError carrying only the status.
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return llm.StatusError(providerName, apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code > 0 {
		return llm.StatusError(providerName, apiErrPtr.Code)
	}
	return llm.TransportError(providerName, err)
}
