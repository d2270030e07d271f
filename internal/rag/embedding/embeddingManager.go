package embedding

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/metrics"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"golang.org/x/time/rate"
)

// Embedder is one embedding provider. Implementations return raw provider errors;
// the Generator classifies them.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

type Settings struct {
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

func SettingsFrom(cfg config.EmbeddingConfig) Settings {
	return Settings{
		MaxRetries:        cfg.MaxRetries,
		RetryBaseDelay:    cfg.RetryBaseDelay,
		RetryMaxDelay:     cfg.RetryMaxDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Timeout:           cfg.Timeout,
	}
}

// Generator wraps an Embedder with input and response validation, error
// classification, retries for transient failures and a shared rate limit.
type Generator struct {
	embedder Embedder
	settings Settings
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *logger_i.Logger
}

func NewGenerator(embedder Embedder, settings Settings) *Generator {
	if settings.RetryBaseDelay <= 0 {
		settings.RetryBaseDelay = config.EmbeddingRetryBaseDelay
	}
	if settings.RetryMaxDelay <= 0 {
		settings.RetryMaxDelay = config.EmbeddingRetryMaxDelay
	}
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}

	limit := rate.Inf
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Generator{
		embedder: embedder,
		settings: settings,
		limiter:  rate.NewLimiter(limit, burst),
		sleep:    sleepCtx,
		logger:   logger_i.NewLogger("Embedding Generator"),
	}
}

func (g *Generator) Dimension() int {
	return g.embedder.Dimension()
}

func (g *Generator) Model() string {
	return g.embedder.Model()
}

// Embed returns the vector for text. Only embedding.service_unavailable is retried.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors_i.New(errors_i.CodeValidationEmptyInput, "text to embed is empty")
	}
	log := g.logger.FromContext(ctx).With("model", g.embedder.Model())

	for attempt := 0; ; attempt++ {
		vec, err := g.call(ctx, text)
		if err == nil {
			return vec, nil
		}
		if !errors_i.IsTransient(err) || attempt >= g.settings.MaxRetries || ctx.Err() != nil {
			return nil, err
		}

		delay := Backoff(attempt, g.settings.RetryBaseDelay, g.settings.RetryMaxDelay)
		log.Warn("embedding call failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		metrics.RecordEmbeddingRetry()
		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			return nil, err
		}
	}
}

func (g *Generator) call(ctx context.Context, text string) ([]float32, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, Classify(err)
	}

	callCtx := ctx
	if g.settings.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.settings.Timeout)
		defer cancel()
	}

	start := time.Now()
	vec, err := g.embedder.Embed(callCtx, text)
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err != nil {
		return nil, Classify(err)
	}
	if err = validateVector(vec, g.embedder.Dimension()); err != nil {
		return nil, err
	}
	return vec, nil
}

// Backoff is base * 2^attempt, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return min(d, max)
}

func validateVector(vec []float32, dimension int) error {
	if len(vec) == 0 {
		return errors_i.New(errors_i.CodeEmbeddingMalformedResponse, "provider returned no vector")
	}
	if dimension > 0 && len(vec) != dimension {
		return errors_i.New(errors_i.CodeEmbeddingMalformedResponse, "provider returned a vector of the wrong length",
			errors_i.Field("want", dimension), errors_i.Field("got", len(vec)))
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors_i.New(errors_i.CodeEmbeddingMalformedResponse, "provider returned a non-finite value",
				errors_i.Field("position", i))
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
