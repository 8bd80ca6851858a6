package ai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultOpenRouterURL = "https://openrouter.ai/api/v1"
)

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// openAIProvider also serves ollama and openrouter through their
// OpenAI-compatible endpoints.
type openAIProvider struct {
	name   string
	client *openai.Client
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.client == nil {
		return "", ErrNotConfigured
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", unavailable(p.name, "chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", unavailable(p.name, "chat", errors.New("response has no choices"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	_ = taskType
	if p.client == nil {
		return nil, ErrNotConfigured
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, unavailable(p.name, "embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, unavailable(p.name, "embeddings", errors.New("response has no embeddings"))
	}
	return resp.Data[0].Embedding, nil
}

func createOpenAIProvider(name, defaultBaseURL string, requireKey bool, args interface{}) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		if requireKey {
			return &openAIProvider{name: name}, nil
		}
		apiKey = name
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	return &openAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

func init() {
	Register("openai", func(args interface{}) (IAIProvider, error) {
		return createOpenAIProvider("openai", defaultOpenAIBaseURL, true, args)
	})
	RegisterEmbed("openai", func(args interface{}) (IEmbedProvider, error) {
		return createOpenAIProvider("openai", defaultOpenAIBaseURL, true, args)
	})
	Register("openrouter", func(args interface{}) (IAIProvider, error) {
		return createOpenAIProvider("openrouter", defaultOpenRouterURL, true, args)
	})
	Register("ollama", func(args interface{}) (IAIProvider, error) {
		return createOpenAIProvider("ollama", defaultOllamaBaseURL, false, args)
	})
	RegisterEmbed("ollama", func(args interface{}) (IEmbedProvider, error) {
		return createOpenAIProvider("ollama", defaultOllamaBaseURL, false, args)
	})
}
