package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/TenantRAG/internal/adapter/utils"
	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/akolanti/TenantRAG/internal/metrics"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB/chromemDB"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB/pgvectorDB"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
)

// OpenBackend connects the configured vector backend.
func OpenBackend(ctx context.Context, cfg config.VectorConfig, dimension int) (vectorDB.Backend, error) {
	connectCtx, cancel := context.WithTimeout(ctx, config.VectorConnectTimeout)
	defer cancel()

	var (
		backend vectorDB.Backend
		err     error
	)
	switch cfg.Backend {
	case config.VectorBackendQdrant:
		var s *qdrantDB.Store
		s, err = qdrantDB.Open(connectCtx, cfg.Qdrant, cfg.Namespace, dimension)
		backend = s
	case config.VectorBackendPostgres:
		var s *pgvectorDB.Store
		s, err = pgvectorDB.Open(connectCtx, cfg.Postgres, cfg.Namespace, dimension)
		backend = s
	case config.VectorBackendChromem:
		var s *chromemDB.Store
		s, err = chromemDB.Open(cfg.Chromem, cfg.Namespace, dimension)
		backend = s
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	return backend, nil
}

func (s *service) jobError(ctx context.Context, job jobModel.IngestJob, err error) jobModel.IngestJob {
	code := errors_i.CodeOf(err)
	s.logger.FromContext(ctx).Error("ingest job failed", "jobId", job.Id, "documentId", job.DocumentId, "code", code, "error", err)

	job.Error = jobModel.JobError{
		Code:    string(code),
		Message: err.Error(),
		Retry:   errors_i.IsTransient(err),
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

func jobFromRequest(ctx context.Context, req commonModels.IngestRequest) jobModel.IngestJob {
	traceId, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	if traceId == "" {
		traceId = utils.GetNewUUID()
	}
	return jobModel.IngestJob{
		Id:          utils.GetNewUUID(),
		TraceId:     traceId,
		DocumentId:  req.DocumentId,
		TenantId:    req.TenantId,
		FileName:    req.FileName,
		MimeType:    req.MimeType,
		FilePath:    req.FilePath,
		ChunkConfig: req.ChunkConfig,
		Metadata:    req.Metadata,
		CreatedTime: time.Now().UTC(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.IngestInit,
	}
}

func (s *service) executeEmbeddingStep(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("query_embedding", time.Since(start)) }()

	return s.generator.Embed(ctx, query)
}

func (s *service) executeSearchStep(ctx context.Context, tenantId string, vector []float32, limit int, documentId string) ([]commonModels.SearchHit, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	return s.store.Search(ctx, tenantId, vector, limit, documentId)
}
