package rag_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/data/store"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/akolanti/TenantRAG/internal/rag"
	"github.com/akolanti/TenantRAG/internal/rag/extract"
	"github.com/akolanti/TenantRAG/internal/rag/ingest"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB/chromemDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenant = "acme"

type harness struct {
	docs    *store.InMemoryDocumentStore
	queue   *store.InMemoryJobQueue
	vectors *chromemDB.Store
	service rag.Service
}

// newHarness wires the real pipeline against an in-memory chromem store.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		docs:    store.InitInMemoryDocumentStore(),
		queue:   store.InitInMemoryJobQueue(4),
		vectors: chromemDB.NewInMemory(config.VectorNamespace, 3),
	}
	_, err := h.vectors.Provision(context.Background(), tenant)
	require.NoError(t, err)

	gen := &MockGenerator{OnEmbed: func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "cat") {
			return []float32{1, 0, 0}, nil
		}
		return []float32{0, 1, 0}, nil
	}}
	h.service = rag.NewPipelineService(h.docs, h.queue, extract.NewExtractor(t.TempDir()), gen, h.vectors, ingest.Settings{
		EmbedConcurrency:   2,
		DocumentTimeout:    5 * time.Second,
		DefaultChunkConfig: commonModels.ChunkConfig{Size: 1000, Overlap: 200},
	})
	return h
}

func textRequest(id, text string) commonModels.IngestRequest {
	return commonModels.IngestRequest{
		DocumentId: id,
		TenantId:   tenant,
		FileName:   id + ".txt",
		MimeType:   "text/plain",
		Data:       []byte(text),
	}
}

func TestIngestThenRetrieve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.service.Ingest(ctx, textRequest("cats", "the cat sat on the mat"))
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusProcessed, res.Status)
	assert.Equal(t, 1, res.ChunkCount)

	_, err = h.service.Ingest(ctx, textRequest("dogs", "a dog barked"))
	require.NoError(t, err)

	hits, err := h.service.Retrieve(ctx, tenant, "where is the cat", 2, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "cats", hits[0].DocumentId)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)

	hits, err = h.service.Retrieve(ctx, tenant, "cat", 5, "dogs")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "dogs", hits[0].DocumentId)
}

func TestIngest_GeneratesDocumentId(t *testing.T) {
	h := newHarness(t)
	res, err := h.service.Ingest(context.Background(), textRequest("", "untitled text"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentId)

	doc, found, err := h.service.GetDocument(context.Background(), res.DocumentId)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tenant, doc.TenantId)
	assert.Equal(t, commonModels.StatusProcessed, doc.Status)
}

func TestIngest_RefusesTerminalDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Ingest(ctx, textRequest("doc-1", "first"))
	require.NoError(t, err)

	_, err = h.service.Ingest(ctx, textRequest("doc-1", "second"))
	assert.Equal(t, errors_i.CodePipelineInvalidTransition, errors_i.CodeOf(err))
}

func TestResubmit_ReplacesPassages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Ingest(ctx, textRequest("doc-1", "the cat"))
	require.NoError(t, err)

	res, err := h.service.Resubmit(ctx, textRequest("doc-1", strings.Repeat("dog ", 400)))
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusProcessed, res.Status)
	assert.Equal(t, 2, res.ChunkCount)

	count, err := h.vectors.CountByDocument(ctx, tenant, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestResubmit_RequiresTerminalStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.docs.SaveDocument(ctx, commonModels.Document{Id: "doc-1", TenantId: tenant, Status: commonModels.StatusPending}))

	_, err := h.service.Resubmit(ctx, textRequest("doc-1", "text"))
	assert.Equal(t, errors_i.CodePipelineInvalidTransition, errors_i.CodeOf(err))
}

func TestRemoveDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Ingest(ctx, textRequest("doc-1", strings.Repeat("cat ", 400)))
	require.NoError(t, err)

	_, err = h.service.RemoveDocument(ctx, "other-tenant", "doc-1")
	assert.True(t, errors_i.IsValidation(err))

	removed, err := h.service.RemoveDocument(ctx, tenant, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, err := h.service.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = h.service.RemoveDocument(ctx, tenant, "doc-1")
	assert.Equal(t, errors_i.CodePipelineDocumentNotFound, errors_i.CodeOf(err))
}

func TestRemoveThenReingestSameId(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.service.Ingest(ctx, textRequest("doc-1", "the cat sat on the mat"))
	require.NoError(t, err)
	_, err = h.service.RemoveDocument(ctx, tenant, "doc-1")
	require.NoError(t, err)

	res, err := h.service.Ingest(ctx, textRequest("doc-1", "a dog barked"))
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusProcessed, res.Status)

	hits, err := h.service.Retrieve(ctx, tenant, "cat", 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-1", hits[0].DocumentId)
	assert.Equal(t, "a dog barked", hits[0].ChunkText)
	for _, hit := range hits {
		assert.NotContains(t, hit.ChunkText, "cat")
	}
}

func seedProcessing(t *testing.T, h *harness, id string, updated time.Time) {
	t.Helper()
	require.NoError(t, h.docs.SaveDocument(context.Background(), commonModels.Document{
		Id:        id,
		TenantId:  tenant,
		Status:    commonModels.StatusProcessing,
		CreatedAt: updated,
		UpdatedAt: updated,
	}))
}

func TestProcessingDocument_FreshIsRefused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedProcessing(t, h, "doc-1", time.Now().UTC())

	_, err := h.service.RemoveDocument(ctx, tenant, "doc-1")
	assert.Equal(t, errors_i.CodePipelineInvalidTransition, errors_i.CodeOf(err))
	_, err = h.service.Resubmit(ctx, textRequest("doc-1", "text"))
	assert.Equal(t, errors_i.CodePipelineInvalidTransition, errors_i.CodeOf(err))
}

func TestProcessingDocument_StaleCanBeRemoved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedProcessing(t, h, "doc-1", time.Now().UTC().Add(-time.Hour))

	_, err := h.service.RemoveDocument(ctx, tenant, "doc-1")
	require.NoError(t, err)
	_, found, err := h.service.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, found)

	// the id is free again
	res, err := h.service.Ingest(ctx, textRequest("doc-1", "the cat"))
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusProcessed, res.Status)
}

func TestProcessingDocument_StaleCanBeResubmitted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedProcessing(t, h, "doc-1", time.Now().UTC().Add(-time.Hour))

	res, err := h.service.Resubmit(ctx, textRequest("doc-1", "the cat"))
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusProcessed, res.Status)
	assert.Equal(t, 1, res.ChunkCount)
}

func TestSubmitAndProcessJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "trace-1")

	path := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(path, []byte("queued cat text"), 0o600))
	req := textRequest("doc-q", "")
	req.Data = nil
	req.FilePath = path

	doc, err := h.service.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusPending, doc.Status)

	job, ok, err := h.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "trace-1", job.TraceId)
	assert.Equal(t, "doc-q", job.DocumentId)

	job = h.service.ProcessJob(context.Background(), job)
	assert.Equal(t, jobModel.JobStatusComplete, job.Status)
	assert.Equal(t, jobModel.Complete, job.CurrentStep)

	doc, _, err = h.service.GetDocument(ctx, "doc-q")
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusProcessed, doc.Status)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSubmit_NeedsUploadFile(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Submit(context.Background(), textRequest("doc-1", "inline"))
	assert.Equal(t, errors_i.CodeValidationEmptyInput, errors_i.CodeOf(err))
}

func TestProcessJob_Scenarios(t *testing.T) {
	tests := []struct {
		name          string
		processErr    error
		expectedState jobModel.JobStatus
		expectedCode  string
		expectedRetry bool
	}{
		{
			name:          "Success",
			expectedState: jobModel.JobStatusComplete,
		},
		{
			name:          "Transient_Failure",
			processErr:    errors_i.Reclassify(errors_i.New(errors_i.CodeEmbeddingServiceUnavailable, "down"), errors_i.CodeEmbeddingServiceUnavailable, "all failed"),
			expectedState: jobModel.JobStatusError,
			expectedCode:  string(errors_i.CodeEmbeddingServiceUnavailable),
			expectedRetry: true,
		},
		{
			name:          "Permanent_Failure",
			processErr:    errors_i.New(errors_i.CodePipelineEmptyContent, "empty"),
			expectedState: jobModel.JobStatusError,
			expectedCode:  string(errors_i.CodePipelineEmptyContent),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &MockProcessor{OnProcess: func(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error) {
				assert.Equal(t, "trace-x", ctx.Value(config.TRACE_ID_KEY))
				return commonModels.IngestResult{DocumentId: req.DocumentId}, tt.processErr
			}}
			svc := rag.NewService(store.InitInMemoryDocumentStore(), nil, processor, &MockGenerator{}, &MockVectorStore{})

			job := svc.ProcessJob(context.Background(), jobModel.IngestJob{Id: "j1", TraceId: "trace-x", DocumentId: "d1", TenantId: tenant})
			assert.Equal(t, tt.expectedState, job.Status)
			assert.Equal(t, tt.expectedCode, job.Error.Code)
			assert.Equal(t, tt.expectedRetry, job.Error.Retry)
		})
	}
}

func TestRetrieve_Validation(t *testing.T) {
	svc := rag.NewService(store.InitInMemoryDocumentStore(), nil, &MockProcessor{}, &MockGenerator{}, &MockVectorStore{})
	ctx := context.Background()

	_, err := svc.Retrieve(ctx, "", "query", 3, "")
	assert.Equal(t, errors_i.CodeValidationInvalidTenant, errors_i.CodeOf(err))

	_, err = svc.Retrieve(ctx, tenant, "   ", 3, "")
	assert.Equal(t, errors_i.CodeValidationEmptyInput, errors_i.CodeOf(err))
}

func TestRetrieve_DefaultLimitAndErrors(t *testing.T) {
	var gotLimit int
	vectors := &MockVectorStore{OnSearch: func(ctx context.Context, tenantId string, query []float32, limit int, documentId string) ([]commonModels.SearchHit, error) {
		gotLimit = limit
		return nil, nil
	}}
	gen := &MockGenerator{}
	svc := rag.NewService(store.InitInMemoryDocumentStore(), nil, &MockProcessor{}, gen, vectors)

	_, err := svc.Retrieve(context.Background(), tenant, "q", 0, "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRetrieveLimit, gotLimit)

	_, err = svc.Retrieve(context.Background(), tenant, "q", 10_000, "")
	require.NoError(t, err)
	assert.Equal(t, config.MaxRetrieveLimit, gotLimit)

	gen.OnEmbed = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors_i.New(errors_i.CodeEmbeddingInvalidCredentials, "bad key")
	}
	_, err = svc.Retrieve(context.Background(), tenant, "q", 1, "")
	assert.Equal(t, errors_i.CodeEmbeddingInvalidCredentials, errors_i.CodeOf(err))

	gen.OnEmbed = nil
	vectors.OnSearch = func(ctx context.Context, tenantId string, query []float32, limit int, documentId string) ([]commonModels.SearchHit, error) {
		return nil, errors_i.New(errors_i.CodeStoreNotProvisioned, "missing")
	}
	_, err = svc.Retrieve(context.Background(), tenant, "q", 1, "")
	assert.True(t, errors_i.IsNotProvisioned(err))
	assert.False(t, errors.Is(err, context.Canceled))
}
