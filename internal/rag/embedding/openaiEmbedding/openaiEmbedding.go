package openaiEmbedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimension  int
	HTTPClient *http.Client
}

type Client struct {
	client    openai.Client
	model     string
	dimension int
	logger    *logger_i.Logger
}

// New builds an OpenAI-compatible embedder. The SDK's own retries are off;
// retrying is left to the caller.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai embedding: api key is required")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	logger := logger_i.NewLogger("openai_embedding")
	logger.Info("OpenAI Embedding client created", "model", opts.Model, "dimension", opts.Dimension)
	return &Client{
		client:    openai.NewClient(reqOpts...),
		model:     opts.Model,
		dimension: opts.Dimension,
		logger:    logger,
	}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.model),
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		c.logger.FromContext(ctx).Debug("openai embedding call failed", "error", err)
		return nil, err
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, nil
	}

	values := resp.Data[0].Embedding
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out, nil
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) Model() string {
	return c.model
}
