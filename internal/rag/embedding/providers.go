package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/TenantRAG/internal/rag/embedding/ollamaEmbedding"
	"github.com/akolanti/TenantRAG/internal/rag/embedding/openaiEmbedding"
)

// NewEmbedder builds the provider named by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig, httpClient *http.Client) (Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingProviderOpenAI:
		return openaiEmbedding.New(openaiEmbedding.Options{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimension:  cfg.Dimension,
			HTTPClient: httpClient,
		})
	case config.EmbeddingProviderGoogle:
		return googleEmbedding.New(ctx, googleEmbedding.Options{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimension:  cfg.Dimension,
			HTTPClient: httpClient,
		})
	case config.EmbeddingProviderOllama:
		return ollamaEmbedding.New(ollamaEmbedding.Options{
			ServerURL:  cfg.BaseURL,
			Model:      cfg.Model,
			Dimension:  cfg.Dimension,
			HTTPClient: httpClient,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewGeneratorFromConfig wires provider, retry policy and limiter in one call.
func NewGeneratorFromConfig(ctx context.Context, cfg config.EmbeddingConfig, httpClient *http.Client) (*Generator, error) {
	embedder, err := NewEmbedder(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}
	return NewGenerator(embedder, SettingsFrom(cfg)), nil
}
