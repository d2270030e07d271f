package ingest

import (
	"context"
	"errors"
	"os"
	"slices"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/akolanti/TenantRAG/internal/metrics"
	"github.com/akolanti/TenantRAG/internal/rag/chunker"
	"github.com/akolanti/TenantRAG/internal/rag/embedding"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

// bound for cleanup that runs after the document deadline or a cancelled ctx
const afterDeadlineTimeout = 30 * time.Second

type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

type Settings struct {
	EmbedConcurrency   int
	DocumentTimeout    time.Duration
	DefaultChunkConfig commonModels.ChunkConfig
	TenantChunkConfigs map[string]commonModels.ChunkConfig
}

// StaleAfter is how long a PROCESSING record can go without an update before
// no run can still own it.
func (s Settings) StaleAfter() time.Duration {
	timeout := s.DocumentTimeout
	if timeout <= 0 {
		timeout = config.DocumentTimeout
	}
	return timeout + config.StaleProcessingMargin
}

func SettingsFrom(cfg config.IngestConfig) Settings {
	tenants := make(map[string]commonModels.ChunkConfig, len(cfg.Tenants))
	for id, t := range cfg.Tenants {
		tenants[id] = commonModels.ChunkConfig{Size: t.ChunkSize, Overlap: t.ChunkOverlap}
	}
	return Settings{
		EmbedConcurrency:   cfg.EmbedConcurrency,
		DocumentTimeout:    cfg.DocumentTimeout,
		DefaultChunkConfig: commonModels.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		TenantChunkConfigs: tenants,
	}
}

// Pipeline turns one uploaded document into stored passages and drives its status
// PENDING -> PROCESSING -> PROCESSED | FAILED.
type Pipeline struct {
	docs      jobModel.DocumentStore
	extractor TextExtractor
	generator embedding.VectorGenerator
	store     vectorDB.VectorStore
	settings  Settings
	logger    *logger_i.Logger
	now       func() time.Time
}

func NewPipeline(docs jobModel.DocumentStore, extractor TextExtractor, generator embedding.VectorGenerator, store vectorDB.VectorStore, settings Settings) *Pipeline {
	if settings.EmbedConcurrency <= 0 {
		settings.EmbedConcurrency = config.EmbedConcurrency
	}
	if settings.DocumentTimeout <= 0 {
		settings.DocumentTimeout = config.DocumentTimeout
	}
	return &Pipeline{
		docs:      docs,
		extractor: extractor,
		generator: generator,
		store:     store,
		settings:  settings,
		logger:    logger_i.NewLogger("Document Ingestion"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// run carries the state of one Process call.
type run struct {
	req          commonModels.IngestRequest
	doc          commonModels.Document
	log          *logger_i.Logger
	totalChunks  int
	failedChunks []int
	wrote        bool
}

func (p *Pipeline) Process(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error) {
	ctx = context.WithValue(ctx, config.TENANT_ID_KEY, req.TenantId)
	log := p.logger.FromContext(ctx).With("documentId", req.DocumentId)
	start := time.Now()
	defer p.releaseUpload(log, req.FilePath)

	r := &run{req: req, log: log}
	result, err := p.process(ctx, r)
	metrics.CaptureJobMetrics(string(result.Status), time.Since(start))
	if result.Status != "" {
		metrics.RecordDocumentStatus(string(result.Status))
	}
	return result, err
}

func (p *Pipeline) process(ctx context.Context, r *run) (commonModels.IngestResult, error) {
	if err := validateRequest(r.req); err != nil {
		return commonModels.IngestResult{DocumentId: r.req.DocumentId}, err
	}

	doc, err := p.begin(ctx, r.req)
	if err != nil {
		r.log.Warn("document cannot be processed", "error", err)
		return commonModels.IngestResult{DocumentId: r.req.DocumentId}, err
	}
	r.doc = doc
	r.log.Info("processing document", "fileName", doc.FileName)

	docCtx, cancel := context.WithTimeout(ctx, p.settings.DocumentTimeout)
	defer cancel()

	chunks, err := p.prepare(docCtx, r)
	if err != nil {
		return p.fail(ctx, r, err)
	}
	r.totalChunks = len(chunks)

	ok, err := p.embed(docCtx, r, chunks)
	if err != nil {
		return p.fail(ctx, r, err)
	}

	count, err := p.persist(docCtx, r, chunks, ok)
	if err != nil {
		return p.fail(ctx, r, err)
	}

	r.doc.Status = commonModels.StatusProcessed
	r.doc.ChunkCount = count
	r.doc.TotalChunks = r.totalChunks
	r.doc.FailedChunks = r.failedChunks
	r.doc.Reason = ""
	r.doc.UpdatedAt = p.now()
	if err = p.docs.SaveDocument(ctx, r.doc); err != nil {
		return p.fail(ctx, r, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "save processed document"))
	}

	r.log.Info("document processed", "chunks", count, "totalChunks", r.totalChunks, "failedChunks", len(r.failedChunks))
	return commonModels.IngestResult{
		DocumentId:   r.doc.Id,
		Status:       commonModels.StatusProcessed,
		ChunkCount:   count,
		TotalChunks:  r.totalChunks,
		FailedChunks: r.failedChunks,
	}, nil
}

// begin loads the record and moves it PENDING -> PROCESSING.
func (p *Pipeline) begin(ctx context.Context, req commonModels.IngestRequest) (commonModels.Document, error) {
	doc, found, err := p.docs.GetDocument(ctx, req.DocumentId)
	if err != nil {
		return doc, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "load document", errors_i.FieldDocument(req.DocumentId))
	}
	if !found {
		return doc, errors_i.New(errors_i.CodePipelineDocumentNotFound, "document record not found", errors_i.FieldDocument(req.DocumentId))
	}
	if doc.TenantId != req.TenantId {
		return doc, errors_i.New(errors_i.CodeValidationInvalidTenant, "document belongs to another tenant",
			errors_i.FieldDocument(req.DocumentId), errors_i.FieldTenant(req.TenantId))
	}
	if doc.Status != commonModels.StatusPending {
		return doc, errors_i.New(errors_i.CodePipelineInvalidTransition, "document is not pending",
			errors_i.FieldDocument(doc.Id), errors_i.Field("status", string(doc.Status)))
	}

	doc.Status = commonModels.StatusProcessing
	doc.UpdatedAt = p.now()
	if err = p.docs.SaveDocument(ctx, doc); err != nil {
		return doc, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "save processing document", errors_i.FieldDocument(doc.Id))
	}
	return doc, nil
}

// prepare reads, extracts and chunks the upload.
func (p *Pipeline) prepare(ctx context.Context, r *run) ([]string, error) {
	data, err := readUpload(r.req)
	if err != nil {
		return nil, err
	}

	mimeType := r.req.MimeType
	if mimeType == "" {
		mimeType = r.doc.FileType
	}
	text, err := p.extractor.Extract(ctx, data, mimeType)
	if errors_i.HasCode(err, errors_i.CodeExtractionNoExtractableText) {
		return nil, errors_i.Reclassify(err, errors_i.CodePipelineEmptyContent, "document has no content", errors_i.FieldDocument(r.doc.Id))
	}
	if err != nil {
		return nil, err
	}

	cfg := p.chunkConfig(r.req.TenantId, r.req.ChunkConfig)
	chunks, err := chunker.Chunk(text, cfg.Size, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errors_i.New(errors_i.CodePipelineEmptyContent, "document produced no chunks", errors_i.FieldDocument(r.doc.Id))
	}
	r.log.Debug("document chunked", "chunks", len(chunks), "size", cfg.Size, "overlap", cfg.Overlap)
	return chunks, nil
}

// chunkConfig picks the request config, then the tenant default, then the global default.
func (p *Pipeline) chunkConfig(tenantId string, requested commonModels.ChunkConfig) commonModels.ChunkConfig {
	fallback := p.settings.DefaultChunkConfig
	if tenantCfg, ok := p.settings.TenantChunkConfigs[tenantId]; ok && !tenantCfg.IsZero() {
		fallback = tenantCfg.Resolve(fallback)
	}
	return requested.Resolve(fallback)
}

func (p *Pipeline) embed(ctx context.Context, r *run, chunks []string) ([]embedding.Result, error) {
	start := time.Now()
	results := embedding.EmbedAll(ctx, p.generator, chunks, p.settings.EmbedConcurrency)
	ok, failed := embedding.Split(results)
	r.failedChunks = failed
	r.log.Debug("embeddings finished", "ok", len(ok), "failed", len(failed), "elapsed", time.Since(start))

	var firstErr error
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		metrics.RecordChunkEmbeddingFailure(string(errors_i.CodeOf(res.Err)))
		if firstErr == nil {
			firstErr = res.Err
		}
	}

	// in-flight calls were allowed to finish, but the document is over its budget
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors_i.Wrap(ctxErr, errors_i.CodePipelineDocumentTimeout, "document timed out while embedding",
			errors_i.FieldDocument(r.doc.Id), errors_i.Field("embedded", len(ok)), errors_i.Field("chunks", len(chunks)))
	}

	if len(ok) == 0 {
		if firstErr == nil {
			firstErr = errors.New("no embeddings returned")
		}
		return nil, errors_i.Reclassify(firstErr, errors_i.CodePipelineAllEmbeddingsFailed, "every chunk failed to embed",
			errors_i.FieldDocument(r.doc.Id), errors_i.Field("chunks", len(chunks)))
	}
	if len(failed) > 0 {
		r.log.Warn("some chunks failed to embed", "failedChunks", failed, "error", firstErr)
	}
	return ok, nil
}

// persist stores the embedded chunks under their original index and returns the stored count.
func (p *Pipeline) persist(ctx context.Context, r *run, chunks []string, ok []embedding.Result) (int, error) {
	passages := make([]commonModels.PassageInput, 0, len(ok))
	for _, res := range ok {
		index := res.Index
		passages = append(passages, commonModels.PassageInput{
			ChunkText:  chunks[index],
			Embedding:  res.Vector,
			Metadata:   p.passageMetadata(r),
			ChunkIndex: &index,
		})
	}

	r.wrote = true
	inserted, err := p.store.InsertMany(ctx, r.req.TenantId, r.doc.Id, passages)
	metrics.RecordPassagesStored(inserted)
	if err != nil {
		if inserted == 0 || errors_i.IsNotProvisioned(err) {
			return 0, err
		}
		rejected := p.rejectedChunks(err, passages)
		r.failedChunks = mergeIndexes(r.failedChunks, rejected)
		r.log.Warn("some passages were not stored", "inserted", inserted, "rejectedChunks", rejected, "error", err)
	}

	count, err := p.store.CountByDocument(ctx, r.req.TenantId, r.doc.Id)
	if err != nil {
		return 0, err
	}
	if count != inserted {
		r.log.Warn("stored count differs from inserted count", "inserted", inserted, "stored", count)
	}
	return count, nil
}

// rejectedChunks maps the positions InsertMany rejected back to chunk indexes.
func (p *Pipeline) rejectedChunks(err error, passages []commonModels.PassageInput) []int {
	positions, ok := vectorDB.RejectedPositions(err)
	if !ok {
		return nil
	}
	chunks := make([]int, 0, len(positions))
	for _, pos := range positions {
		if pos >= 0 && pos < len(passages) && passages[pos].ChunkIndex != nil {
			chunks = append(chunks, *passages[pos].ChunkIndex)
		}
	}
	return chunks
}

func mergeIndexes(a, b []int) []int {
	if len(b) == 0 {
		return a
	}
	merged := append(slices.Clone(a), b...)
	slices.Sort(merged)
	return slices.Compact(merged)
}

func (p *Pipeline) passageMetadata(r *run) map[string]any {
	meta := make(map[string]any, len(r.req.Metadata)+2)
	for k, v := range r.req.Metadata {
		meta[k] = v
	}
	meta[commonModels.MetaFileName] = r.doc.FileName
	meta[commonModels.MetaFileType] = r.doc.FileType
	return meta
}

// fail marks the document FAILED and removes passages this attempt wrote.
func (p *Pipeline) fail(ctx context.Context, r *run, cause error) (commonModels.IngestResult, error) {
	r.log.Error("document ingestion failed", "error", cause, "code", errors_i.CodeOf(cause))

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterDeadlineTimeout)
	defer cancel()

	if r.wrote {
		if n, err := p.store.DeleteByDocument(cleanupCtx, r.req.TenantId, r.doc.Id); err != nil {
			r.log.Error("failed removing partial passages", "error", err)
		} else if n > 0 {
			r.log.Info("removed partial passages", "count", n)
		}
	}

	r.doc.Status = commonModels.StatusFailed
	r.doc.Reason = cause.Error()
	r.doc.ChunkCount = 0
	r.doc.TotalChunks = r.totalChunks
	r.doc.FailedChunks = r.failedChunks
	r.doc.UpdatedAt = p.now()
	if err := p.docs.SaveDocument(cleanupCtx, r.doc); err != nil {
		r.log.Error("failed saving failed document", "error", err)
	}

	return commonModels.IngestResult{
		DocumentId:   r.doc.Id,
		Status:       commonModels.StatusFailed,
		TotalChunks:  r.totalChunks,
		FailedChunks: r.failedChunks,
	}, cause
}

func (p *Pipeline) releaseUpload(log *logger_i.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed releasing upload", "path", path, "error", err)
	}
}

func readUpload(req commonModels.IngestRequest) ([]byte, error) {
	if req.FilePath == "" {
		return req.Data, nil
	}
	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, errors_i.Wrap(err, errors_i.CodeValidationInvalidInput, "read upload", errors_i.Field("path", req.FilePath))
	}
	return data, nil
}

func validateRequest(req commonModels.IngestRequest) error {
	if req.DocumentId == "" {
		return errors_i.New(errors_i.CodeValidationInvalidInput, "document id is required")
	}
	if req.TenantId == "" {
		return errors_i.New(errors_i.CodeValidationInvalidTenant, "tenant id is required")
	}
	if req.FilePath == "" && len(req.Data) == 0 {
		return errors_i.New(errors_i.CodeValidationEmptyInput, "no document content supplied", errors_i.FieldDocument(req.DocumentId))
	}
	return nil
}
