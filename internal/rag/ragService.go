package rag

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/akolanti/TenantRAG/internal/adapter/utils"
	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/akolanti/TenantRAG/internal/metrics"
	"github.com/akolanti/TenantRAG/internal/rag/embedding"
	"github.com/akolanti/TenantRAG/internal/rag/ingest"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

/*
Service is the public contract used by the worker pool, the MCP tools and the CLI.
service is the private implementation holding the catalog, the queue, the
pipeline and the store. Callers depend on the interface so tests can swap the
dependencies without touching the callers.
*/
type Service interface {
	// Ingest creates the catalog record when missing and processes the document synchronously.
	Ingest(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error)
	// Submit creates a PENDING record and queues the document for the worker pool.
	Submit(ctx context.Context, req commonModels.IngestRequest) (commonModels.Document, error)
	// Resubmit clears a terminal or abandoned PROCESSING document and processes it again.
	Resubmit(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error)
	RemoveDocument(ctx context.Context, tenantId, documentId string) (int, error)
	Retrieve(ctx context.Context, tenantId, query string, limit int, documentId string) ([]commonModels.SearchHit, error)
	GetDocument(ctx context.Context, documentId string) (commonModels.Document, bool, error)
	ProcessJob(ctx context.Context, job jobModel.IngestJob) jobModel.IngestJob
}

// Processor runs one document through ingestion.
type Processor interface {
	Process(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error)
}

type service struct {
	docs      jobModel.DocumentStore
	queue     jobModel.JobQueue
	pipeline  Processor
	generator embedding.VectorGenerator
	store     vectorDB.VectorStore
	// PROCESSING records untouched for longer than this were abandoned by a crashed run
	staleAfter time.Duration
	logger     *logger_i.Logger
}

// NewService wires the service. queue may be nil, in which case Submit is unavailable.
func NewService(docs jobModel.DocumentStore, queue jobModel.JobQueue, pipeline Processor, generator embedding.VectorGenerator, store vectorDB.VectorStore) Service {
	return newService(docs, queue, pipeline, generator, store, ingest.Settings{}.StaleAfter())
}

// NewPipelineService builds the ingestion pipeline from its parts and wraps it in a Service.
func NewPipelineService(docs jobModel.DocumentStore, queue jobModel.JobQueue, extractor ingest.TextExtractor, generator embedding.VectorGenerator, store vectorDB.VectorStore, settings ingest.Settings) Service {
	pipeline := ingest.NewPipeline(docs, extractor, generator, store, settings)
	return newService(docs, queue, pipeline, generator, store, settings.StaleAfter())
}

func newService(docs jobModel.DocumentStore, queue jobModel.JobQueue, pipeline Processor, generator embedding.VectorGenerator, store vectorDB.VectorStore, staleAfter time.Duration) *service {
	return &service{
		docs:       docs,
		queue:      queue,
		pipeline:   pipeline,
		generator:  generator,
		store:      store,
		staleAfter: staleAfter,
		logger:     logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) Ingest(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	req, err := s.register(ctx, req)
	if err != nil {
		releaseUpload(req.FilePath)
		return commonModels.IngestResult{DocumentId: req.DocumentId}, err
	}
	return s.pipeline.Process(ctx, req)
}

func (s *service) Submit(ctx context.Context, req commonModels.IngestRequest) (commonModels.Document, error) {
	if s.queue == nil {
		return commonModels.Document{}, errors_i.New(errors_i.CodeValidationInvalidInput, "async ingestion is not configured")
	}
	if req.FilePath == "" {
		return commonModels.Document{}, errors_i.New(errors_i.CodeValidationEmptyInput, "queued ingestion needs an upload file")
	}

	req, err := s.register(ctx, req)
	if err != nil {
		releaseUpload(req.FilePath)
		return commonModels.Document{}, err
	}

	job := jobFromRequest(ctx, req)
	if err = s.queue.Enqueue(ctx, job); err != nil {
		s.logger.FromContext(ctx).Error("failed to queue document", "documentId", req.DocumentId, "error", err)
		releaseUpload(req.FilePath)
		s.markFailed(ctx, req.DocumentId, err)
		return commonModels.Document{}, err
	}
	metrics.IncrementJobsInQueue()

	doc, _, err := s.docs.GetDocument(ctx, req.DocumentId)
	if err != nil {
		return commonModels.Document{}, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "load document")
	}
	return doc, nil
}

func (s *service) Resubmit(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error) {
	if req.DocumentId == "" {
		return commonModels.IngestResult{}, errors_i.New(errors_i.CodeValidationInvalidInput, "document id is required")
	}
	doc, err := s.ownedDocument(ctx, req.TenantId, req.DocumentId)
	if err != nil {
		releaseUpload(req.FilePath)
		return commonModels.IngestResult{DocumentId: req.DocumentId}, err
	}
	if !doc.Status.IsTerminal() && !s.abandoned(ctx, doc) {
		releaseUpload(req.FilePath)
		return commonModels.IngestResult{DocumentId: doc.Id, Status: doc.Status}, errors_i.New(errors_i.CodePipelineInvalidTransition,
			"only processed or failed documents can be resubmitted", errors_i.FieldDocument(doc.Id), errors_i.Field("status", string(doc.Status)))
	}

	removed, err := s.store.DeleteByDocument(ctx, req.TenantId, doc.Id)
	if err != nil {
		releaseUpload(req.FilePath)
		return commonModels.IngestResult{DocumentId: doc.Id, Status: doc.Status}, err
	}
	s.logger.FromContext(ctx).Info("resubmitting document", "documentId", doc.Id, "removedPassages", removed)

	doc.Status = commonModels.StatusPending
	doc.ChunkCount = 0
	doc.TotalChunks = 0
	doc.FailedChunks = nil
	doc.Reason = ""
	if req.FileName != "" {
		doc.FileName = req.FileName
	}
	if req.MimeType != "" {
		doc.FileType = req.MimeType
	}
	doc.UpdatedAt = time.Now().UTC()
	if err = s.docs.SaveDocument(ctx, doc); err != nil {
		releaseUpload(req.FilePath)
		return commonModels.IngestResult{DocumentId: doc.Id}, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "reset document")
	}
	return s.pipeline.Process(ctx, req)
}

// RemoveDocument deletes the passages first so a crash never leaves passages without a record.
func (s *service) RemoveDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if documentId == "" {
		return 0, errors_i.New(errors_i.CodeValidationInvalidInput, "document id is required")
	}
	doc, err := s.ownedDocument(ctx, tenantId, documentId)
	if err != nil {
		return 0, err
	}
	if doc.Status == commonModels.StatusProcessing && !s.abandoned(ctx, doc) {
		return 0, errors_i.New(errors_i.CodePipelineInvalidTransition, "document is being processed", errors_i.FieldDocument(documentId))
	}

	removed, err := s.store.DeleteByDocument(ctx, tenantId, documentId)
	if err != nil {
		return 0, err
	}
	if err = s.docs.DeleteDocument(ctx, documentId); err != nil {
		return removed, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "delete document record", errors_i.FieldDocument(documentId))
	}
	s.logger.FromContext(ctx).Info("document removed", "documentId", documentId, "passages", removed)
	return removed, nil
}

func (s *service) Retrieve(ctx context.Context, tenantId, query string, limit int, documentId string) ([]commonModels.SearchHit, error) {
	if tenantId == "" {
		return nil, errors_i.New(errors_i.CodeValidationInvalidTenant, "tenant id is required")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors_i.New(errors_i.CodeValidationEmptyInput, "query is empty")
	}
	if limit <= 0 {
		limit = config.DefaultRetrieveLimit
	}
	limit = min(limit, config.MaxRetrieveLimit)

	log := s.logger.FromContext(ctx).With("tenantId", tenantId)

	vector, err := s.executeEmbeddingStep(ctx, query)
	if err != nil {
		log.Warn("query embedding failed", "error", err)
		return nil, err
	}
	hits, err := s.executeSearchStep(ctx, tenantId, vector, limit, documentId)
	if err != nil {
		log.Warn("search failed", "error", err)
		return nil, err
	}
	log.Debug("retrieved passages", "hits", len(hits), "limit", limit)
	return hits, nil
}

func (s *service) GetDocument(ctx context.Context, documentId string) (commonModels.Document, bool, error) {
	doc, found, err := s.docs.GetDocument(ctx, documentId)
	if err != nil {
		return doc, false, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "load document", errors_i.FieldDocument(documentId))
	}
	return doc, found, nil
}

// ProcessJob is the worker entry point for a queued document.
func (s *service) ProcessJob(ctx context.Context, job jobModel.IngestJob) jobModel.IngestJob {
	if job.TraceId != "" {
		ctx = context.WithValue(ctx, config.TRACE_ID_KEY, job.TraceId)
	}
	job.Status = jobModel.JobStatusRunning
	job.CurrentStep = jobModel.IngestInit

	res, err := s.pipeline.Process(ctx, job.Request())
	if err != nil {
		return s.jobError(ctx, job, err)
	}
	s.logger.FromContext(ctx).Debug("job complete", "jobId", job.Id, "documentId", res.DocumentId, "chunks", res.ChunkCount)
	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	return job
}

// register validates req and makes sure a PENDING record exists for it.
func (s *service) register(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestRequest, error) {
	if req.TenantId == "" {
		return req, errors_i.New(errors_i.CodeValidationInvalidTenant, "tenant id is required")
	}
	if req.DocumentId == "" {
		req.DocumentId = utils.GetNewUUID()
	}

	doc, found, err := s.docs.GetDocument(ctx, req.DocumentId)
	if err != nil {
		return req, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "load document", errors_i.FieldDocument(req.DocumentId))
	}
	if found {
		if doc.TenantId != req.TenantId {
			return req, errors_i.New(errors_i.CodeValidationInvalidTenant, "document belongs to another tenant", errors_i.FieldDocument(req.DocumentId))
		}
		if doc.Status != commonModels.StatusPending {
			return req, errors_i.New(errors_i.CodePipelineInvalidTransition, "document already ingested, resubmit to process it again",
				errors_i.FieldDocument(req.DocumentId), errors_i.Field("status", string(doc.Status)))
		}
		return req, nil
	}

	now := time.Now().UTC()
	doc = commonModels.Document{
		Id:          req.DocumentId,
		TenantId:    req.TenantId,
		FileName:    req.FileName,
		FileType:    req.MimeType,
		Status:      commonModels.StatusPending,
		ChunkConfig: req.ChunkConfig,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.docs.SaveDocument(ctx, doc); err != nil {
		return req, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "create document", errors_i.FieldDocument(req.DocumentId))
	}
	return req, nil
}

func (s *service) ownedDocument(ctx context.Context, tenantId, documentId string) (commonModels.Document, error) {
	doc, found, err := s.GetDocument(ctx, documentId)
	if err != nil {
		return doc, err
	}
	if !found {
		return doc, errors_i.New(errors_i.CodePipelineDocumentNotFound, "document not found", errors_i.FieldDocument(documentId))
	}
	if doc.TenantId != tenantId {
		return doc, errors_i.New(errors_i.CodeValidationInvalidTenant, "document belongs to another tenant",
			errors_i.FieldDocument(documentId), errors_i.FieldTenant(tenantId))
	}
	return doc, nil
}

// abandoned reports a PROCESSING record no live run can still own.
func (s *service) abandoned(ctx context.Context, doc commonModels.Document) bool {
	if doc.Status != commonModels.StatusProcessing {
		return false
	}
	idle := time.Since(doc.UpdatedAt)
	if idle <= s.staleAfter {
		return false
	}
	s.logger.FromContext(ctx).Warn("taking over stale processing document", "documentId", doc.Id, "idle", idle.Round(time.Second))
	return true
}

func (s *service) markFailed(ctx context.Context, documentId string, cause error) {
	doc, found, err := s.docs.GetDocument(ctx, documentId)
	if err != nil || !found {
		return
	}
	doc.Status = commonModels.StatusFailed
	doc.Reason = cause.Error()
	doc.UpdatedAt = time.Now().UTC()
	if err = s.docs.SaveDocument(ctx, doc); err != nil {
		s.logger.FromContext(ctx).Error("failed to mark document failed", "documentId", documentId, "error", err)
	}
}

func releaseUpload(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
