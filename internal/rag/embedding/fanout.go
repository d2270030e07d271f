package embedding

import (
	"context"
	"sync"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/panjf2000/ants/v2"
)

// VectorGenerator is what EmbedAll needs from a Generator.
type VectorGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Result struct {
	Index  int
	Vector []float32
	Err    error
}

// EmbedAll embeds every chunk with at most concurrency calls in flight.
// The returned slice has one Result per chunk, in chunk order. ctx only gates
// starting a call: once it is done no further calls start and those chunks
// carry ctx.Err(). Calls already started run to completion, bounded by the
// generator's own per-call timeout.
func EmbedAll(ctx context.Context, gen VectorGenerator, chunks []string, concurrency int) []Result {
	results := make([]Result, len(chunks))
	if len(chunks) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = config.EmbedConcurrency
	}
	concurrency = min(concurrency, len(chunks))

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		for i := range chunks {
			results[i] = Result{Index: i, Err: errors_i.Wrap(err, errors_i.CodeEmbeddingServiceUnavailable, "embedding pool unavailable")}
		}
		return results
	}
	defer pool.Release()

	callCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		results[i].Index = i

		if ctxErr := ctx.Err(); ctxErr != nil {
			results[i].Err = notStarted(ctxErr)
			continue
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctxErr := ctx.Err(); ctxErr != nil {
				results[i].Err = notStarted(ctxErr)
				return
			}
			vec, err := gen.Embed(callCtx, chunk)
			results[i].Vector = vec
			results[i].Err = err
		})
		if submitErr != nil {
			wg.Done()
			results[i].Err = errors_i.Wrap(submitErr, errors_i.CodeEmbeddingServiceUnavailable, "embedding task rejected")
		}
	}
	wg.Wait()
	return results
}

func notStarted(ctxErr error) error {
	return errors_i.Wrap(ctxErr, errors_i.CodeEmbeddingServiceUnavailable, "embedding not started before deadline")
}

// Split separates successes from failures, both in chunk order.
func Split(results []Result) (ok []Result, failed []int) {
	for _, r := range results {
		if r.Err == nil && r.Vector != nil {
			ok = append(ok, r)
		} else {
			failed = append(failed, r.Index)
		}
	}
	return ok, failed
}
