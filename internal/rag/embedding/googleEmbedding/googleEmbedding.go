package googleEmbedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"google.golang.org/genai"
)

const taskType = "RETRIEVAL_DOCUMENT"

type Options struct {
	APIKey     string
	Model      string
	Dimension  int
	HTTPClient *http.Client
}

type Client struct {
	genAi     *genai.Client
	model     string
	dimension int32
	logger    *logger_i.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	logger := logger_i.NewLogger("google_embedding")
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		return nil, fmt.Errorf("google embedding client: %w", err)
	}
	logger.Info("Google Embedding client created", "model", opts.Model)
	return &Client{
		genAi:     c,
		model:     opts.Model,
		dimension: int32(opts.Dimension),
		logger:    logger,
	}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: taskType}
	if c.dimension > 0 {
		cfg.OutputDimensionality = &c.dimension
	}

	result, err := c.genAi.Models.EmbedContent(ctx, c.model, genai.Text(text), cfg)
	if err != nil {
		c.logger.FromContext(ctx).Debug("Error getting Embeddings from Google", "error", err)
		return nil, err
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, nil
	}
	return result.Embeddings[0].Values, nil
}

func (c *Client) Dimension() int {
	return int(c.dimension)
}

func (c *Client) Model() string {
	return c.model
}
