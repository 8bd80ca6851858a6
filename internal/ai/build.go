package ai

import (
	"fmt"
	"time"

	"github.com/xxxsen/tierdoc/internal/config"
)

func retryConfigFrom(cfg config.AIConfig) RetryConfig {
	return RetryConfig{
		MaxRetries: cfg.Retries(),
		BaseDelay:  time.Duration(cfg.RetryBaseMillis) * time.Millisecond,
		Timeout:    time.Duration(cfg.Timeout) * time.Second,
	}
}

// BuildGenerator wraps every configured provider in retries and chains them
// as fallbacks in config order.
func BuildGenerator(cfg config.AIConfig) (IGenerator, error) {
	entries := make([]GeneratorEntry, 0, len(cfg.Summarizer))
	for i, item := range cfg.Summarizer {
		if item.Model == "" {
			return nil, fmt.Errorf("ai.summarizer[%d].model is required", i)
		}
		provider, err := NewProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("ai.summarizer[%d]: %w", i, err)
		}
		entries = append(entries, GeneratorEntry{
			Name:      provider.Name() + ":" + item.Model,
			Generator: WithRetryGenerator(NewGenerator(provider, item.Model), retryConfigFrom(cfg)),
		})
	}
	gen := NewGroupGenerator(entries)
	if gen == nil {
		return nil, fmt.Errorf("ai.summarizer requires at least one provider")
	}
	return gen, nil
}

func BuildEmbedder(cfg config.AIConfig) (IEmbedder, error) {
	entries := make([]EmbedderEntry, 0, len(cfg.Embedder))
	for i, item := range cfg.Embedder {
		if item.Model == "" {
			return nil, fmt.Errorf("ai.embedder[%d].model is required", i)
		}
		provider, err := NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("ai.embedder[%d]: %w", i, err)
		}
		emb := NewEmbedder(provider, item.Model)
		entries = append(entries, EmbedderEntry{
			Name:     emb.ModelName(),
			Embedder: WithRetryEmbedder(emb, retryConfigFrom(cfg)),
		})
	}
	emb := NewGroupEmbedder(entries)
	if emb == nil {
		return nil, fmt.Errorf("ai.embedder requires at least one provider")
	}
	return emb, nil
}

func BuildSummarizer(cfg config.AIConfig) (*Summarizer, error) {
	gen, err := BuildGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return NewSummarizer(gen, cfg.MaxInputChars), nil
}
