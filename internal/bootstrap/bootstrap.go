package bootstrap

import (
	"context"
	"fmt"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/customHttpClient"
	"github.com/akolanti/TenantRAG/internal/data/redisStore"
	"github.com/akolanti/TenantRAG/internal/data/store"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/akolanti/TenantRAG/internal/handlers"
	"github.com/akolanti/TenantRAG/internal/rag"
	"github.com/akolanti/TenantRAG/internal/rag/embedding"
	"github.com/akolanti/TenantRAG/internal/rag/extract"
	"github.com/akolanti/TenantRAG/internal/rag/ingest"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

// Deps holds every long-lived client. The process that built it owns Close.
type Deps struct {
	Config    *config.Config
	Backend   vectorDB.Backend
	Generator *embedding.Generator
	Documents jobModel.DocumentStore
	Queue     jobModel.JobQueue
	Service   rag.Service

	redisDocs  *redisStore.Store
	redisQueue *redisStore.Store
	logger     *logger_i.Logger
}

// Open connects redis (falling back to in-memory stores when it is offline or
// disabled), the vector backend and the embedding provider.
func Open(ctx context.Context, cfg *config.Config) (*Deps, error) {
	d := &Deps{Config: cfg, logger: logger_i.NewLogger("bootstrap")}

	d.openCatalog(ctx)

	backend, err := rag.OpenBackend(ctx, cfg.Vector, cfg.Embedding.Dimension)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Backend = backend

	gen, err := embedding.NewGeneratorFromConfig(ctx, cfg.Embedding, customHttpClient.NewPooledClient(cfg.HTTPClient))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	d.Generator = gen

	d.Service = rag.NewPipelineService(d.Documents, d.Queue, extract.NewExtractor(cfg.Ingest.TempDir), gen, backend, ingest.SettingsFrom(cfg.Ingest))
	d.logger.Info("dependencies ready", "backend", cfg.Vector.Backend, "embedding", cfg.Embedding.Provider, "model", gen.Model())
	return d, nil
}

// OpenManager connects only what tenant store administration needs.
func OpenManager(ctx context.Context, cfg *config.Config) (*Deps, error) {
	d := &Deps{Config: cfg, logger: logger_i.NewLogger("bootstrap")}
	d.openCatalog(ctx)
	backend, err := rag.OpenBackend(ctx, cfg.Vector, cfg.Embedding.Dimension)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Backend = backend
	return d, nil
}

func (d *Deps) openCatalog(ctx context.Context) {
	if d.Config.Redis.Disabled {
		d.logger.Warn("redis disabled, using in-memory catalog and queue")
		d.useInMemory()
		return
	}

	docs, err := redisStore.Open(ctx, d.Config.Redis, d.Config.Redis.DocumentDB)
	if err == nil {
		var queue *redisStore.Store
		queue, err = redisStore.Open(ctx, d.Config.Redis, d.Config.Redis.QueueDB)
		if err == nil {
			d.redisDocs, d.redisQueue = docs, queue
			d.Documents = store.NewRedisDocumentStore(docs)
			d.Queue = store.NewRedisJobQueue(queue, d.Config.Redis.QueueKey)
			return
		}
		_ = docs.Close()
	}
	d.logger.Error("Redis stores are offline, falling back to memory", "error", err)
	d.useInMemory()
}

func (d *Deps) useInMemory() {
	d.Documents = store.InitInMemoryDocumentStore()
	d.Queue = store.InitInMemoryJobQueue(config.BufferLimit)
}

// HealthDependencies lists what /healthz pings.
func (d *Deps) HealthDependencies() map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{"vector": d.Backend}
	if d.redisDocs != nil {
		deps["redis"] = d.redisDocs
	}
	return deps
}

func (d *Deps) Close() {
	if d.Backend != nil {
		if err := d.Backend.Close(); err != nil {
			d.logger.Error("closing vector backend", "error", err)
		}
	}
	for _, s := range []*redisStore.Store{d.redisDocs, d.redisQueue} {
		if s != nil {
			_ = s.Close()
		}
	}
}
