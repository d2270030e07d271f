package ollamaEmbedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

type Options struct {
	ServerURL  string
	Model      string
	Dimension  int
	HTTPClient *http.Client
}

// Client embeds with a local Ollama model through langchaingo.
type Client struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
	logger    *logger_i.Logger
}

func New(opts Options) (*Client, error) {
	llmOpts := []ollama.Option{ollama.WithModel(opts.Model)}
	if opts.ServerURL != "" {
		llmOpts = append(llmOpts, ollama.WithServerURL(opts.ServerURL))
	}
	if opts.HTTPClient != nil {
		llmOpts = append(llmOpts, ollama.WithHTTPClient(opts.HTTPClient))
	}

	llm, err := ollama.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}

	logger := logger_i.NewLogger("ollama_embedding")
	logger.Info("Ollama Embedding client created", "model", opts.Model, "server", opts.ServerURL)
	return &Client{
		embedder:  embedder,
		model:     opts.Model,
		dimension: opts.Dimension,
		logger:    logger,
	}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		c.logger.FromContext(ctx).Debug("ollama embedding call failed", "error", err)
		return nil, err
	}
	return vec, nil
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) Model() string {
	return c.model
}
