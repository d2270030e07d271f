package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/TenantRAG/internal/data/store"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/rag/extract"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB/chromemDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenant = "acme"
	dim    = 3
)

type stubGenerator struct {
	calls  atomic.Int32
	OnText func(text string) ([]float32, error)
}

func (g *stubGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	g.calls.Add(1)
	if g.OnText != nil {
		return g.OnText(text)
	}
	return []float32{1, float32(len(text)%7) + 1, 1}, nil
}

type fixture struct {
	docs     *store.InMemoryDocumentStore
	vectors  *chromemDB.Store
	gen      *stubGenerator
	pipeline *Pipeline
}

func newFixture(t *testing.T, provision bool) *fixture {
	t.Helper()
	f := &fixture{
		docs:    store.InitInMemoryDocumentStore(),
		vectors: chromemDB.NewInMemory("client_vectors", dim),
		gen:     &stubGenerator{},
	}
	if provision {
		_, err := f.vectors.Provision(context.Background(), tenant)
		require.NoError(t, err)
	}
	f.pipeline = NewPipeline(f.docs, extract.NewExtractor(t.TempDir()), f.gen, f.vectors, Settings{
		EmbedConcurrency:   4,
		DocumentTimeout:    5 * time.Second,
		DefaultChunkConfig: commonModels.ChunkConfig{Size: 100, Overlap: 20},
	})
	return f
}

func (f *fixture) pending(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.docs.SaveDocument(context.Background(), commonModels.Document{
		Id:       id,
		TenantId: tenant,
		FileName: id + ".txt",
		FileType: "text/plain",
		Status:   commonModels.StatusPending,
	}))
}

func (f *fixture) status(t *testing.T, id string) commonModels.Document {
	t.Helper()
	doc, found, err := f.docs.GetDocument(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	return doc
}

func request(id string, text string) commonModels.IngestRequest {
	return commonModels.IngestRequest{
		DocumentId: id,
		TenantId:   tenant,
		FileName:   id + ".txt",
		MimeType:   "text/plain",
		Data:       []byte(text),
		Metadata:   map[string]any{"source": "upload"},
	}
}

func TestProcess_StoresEveryChunk(t *testing.T) {
	f := newFixture(t, true)
	f.pending(t, "doc-1")

	text := strings.Repeat("a", 250)
	res, err := f.pipeline.Process(context.Background(), request("doc-1", text))
	require.NoError(t, err)

	// 250 runes at 100/20 -> windows at 0, 80, 160
	assert.Equal(t, commonModels.StatusProcessed, res.Status)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, 3, res.TotalChunks)
	assert.Empty(t, res.FailedChunks)

	doc := f.status(t, "doc-1")
	assert.Equal(t, commonModels.StatusProcessed, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)

	hits, err := f.vectors.Search(context.Background(), tenant, []float32{1, 1, 1}, 10, "doc-1")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for _, h := range hits {
		assert.Equal(t, "doc-1", h.DocumentId)
		assert.Equal(t, "upload", h.Metadata["source"])
		assert.Equal(t, "doc-1.txt", h.Metadata[commonModels.MetaFileName])
	}
}

func TestProcess_PartialEmbeddingFailureKeepsIndexes(t *testing.T) {
	f := newFixture(t, true)
	f.pending(t, "doc-1")

	// second chunk starts at rune 80, which is where the b's begin
	f.gen.OnText = func(text string) ([]float32, error) {
		if strings.HasPrefix(text, "b") {
			return nil, errors_i.New(errors_i.CodeEmbeddingServiceUnavailable, "provider down")
		}
		return []float32{1, 2, 3}, nil
	}
	text := strings.Repeat("a", 80) + strings.Repeat("b", 80) + strings.Repeat("c", 90)

	res, err := f.pipeline.Process(context.Background(), request("doc-1", text))
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusProcessed, res.Status)
	assert.Equal(t, 2, res.ChunkCount)
	assert.Equal(t, 3, res.TotalChunks)
	assert.Equal(t, []int{1}, res.FailedChunks)

	doc := f.status(t, "doc-1")
	assert.Equal(t, []int{1}, doc.FailedChunks)

	hits, err := f.vectors.Search(context.Background(), tenant, []float32{1, 2, 3}, 10, "doc-1")
	require.NoError(t, err)
	var indexes []int
	for _, h := range hits {
		idx, ok := h.Metadata[commonModels.MetaChunkIndex].(int)
		require.True(t, ok)
		indexes = append(indexes, idx)
	}
	assert.ElementsMatch(t, []int{0, 2}, indexes)
}

func TestProcess_AllEmbeddingsFailed(t *testing.T) {
	f := newFixture(t, true)
	f.pending(t, "doc-1")
	f.gen.OnText = func(string) ([]float32, error) {
		return nil, errors_i.New(errors_i.CodeEmbeddingInvalidCredentials, "bad key")
	}

	res, err := f.pipeline.Process(context.Background(), request("doc-1", "some text worth embedding"))
	require.Error(t, err)
	assert.Equal(t, errors_i.CodePipelineAllEmbeddingsFailed, errors_i.CodeOf(err))
	assert.Equal(t, commonModels.StatusFailed, res.Status)

	doc := f.status(t, "doc-1")
	assert.Equal(t, commonModels.StatusFailed, doc.Status)
	assert.Contains(t, doc.Reason, "bad key")
	assert.Zero(t, doc.ChunkCount)
}

func TestProcess_EmptyContent(t *testing.T) {
	f := newFixture(t, true)
	f.pending(t, "doc-1")

	_, err := f.pipeline.Process(context.Background(), request("doc-1", "   \n\t  "))
	require.Error(t, err)
	assert.Equal(t, errors_i.CodePipelineEmptyContent, errors_i.CodeOf(err))
	assert.Zero(t, f.gen.calls.Load())
	assert.Equal(t, commonModels.StatusFailed, f.status(t, "doc-1").Status)
}

func TestProcess_NotProvisionedLeavesNoPassages(t *testing.T) {
	f := newFixture(t, false)
	f.pending(t, "doc-1")

	_, err := f.pipeline.Process(context.Background(), request("doc-1", "hello tenant"))
	require.Error(t, err)
	assert.True(t, errors_i.IsNotProvisioned(err))

	doc := f.status(t, "doc-1")
	assert.Equal(t, commonModels.StatusFailed, doc.Status)

	exists, err := f.vectors.Exists(context.Background(), tenant)
	require.NoError(t, err)
	assert.False(t, exists, "ingestion must never provision")
}

func TestProcess_RejectsNonPending(t *testing.T) {
	f := newFixture(t, true)
	f.pending(t, "doc-1")
	_, err := f.pipeline.Process(context.Background(), request("doc-1", "first run"))
	require.NoError(t, err)

	_, err = f.pipeline.Process(context.Background(), request("doc-1", "second run"))
	require.Error(t, err)
	assert.Equal(t, errors_i.CodePipelineInvalidTransition, errors_i.CodeOf(err))
	assert.Equal(t, commonModels.StatusProcessed, f.status(t, "doc-1").Status)
}

func TestProcess_UnknownDocument(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.pipeline.Process(context.Background(), request("missing", "text"))
	require.Error(t, err)
	assert.Equal(t, errors_i.CodePipelineDocumentNotFound, errors_i.CodeOf(err))
}

func TestProcess_TenantMismatch(t *testing.T) {
	f := newFixture(t, true)
	f.pending(t, "doc-1")
	req := request("doc-1", "text")
	req.TenantId = "other"

	_, err := f.pipeline.Process(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors_i.IsValidation(err))
	assert.Equal(t, commonModels.StatusPending, f.status(t, "doc-1").Status)
}

func TestProcess_ReleasesUploadFile(t *testing.T) {
	f := newFixture(t, true)
	f.pending(t, "doc-1")

	path := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(path, []byte("content from disk"), 0o600))
	req := request("doc-1", "")
	req.Data = nil
	req.FilePath = path

	_, err := f.pipeline.Process(context.Background(), req)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcess_ReleasesUploadFileOnFailure(t *testing.T) {
	f := newFixture(t, false)
	f.pending(t, "doc-1")

	path := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(path, []byte("content from disk"), 0o600))
	req := request("doc-1", "")
	req.Data = nil
	req.FilePath = path

	_, err := f.pipeline.Process(context.Background(), req)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcess_ValidatesRequest(t *testing.T) {
	f := newFixture(t, true)
	tests := []struct {
		name string
		req  commonModels.IngestRequest
		code errors_i.Code
	}{
		{"no document id", commonModels.IngestRequest{TenantId: tenant, Data: []byte("x")}, errors_i.CodeValidationInvalidInput},
		{"no tenant", commonModels.IngestRequest{DocumentId: "d", Data: []byte("x")}, errors_i.CodeValidationInvalidTenant},
		{"no content", commonModels.IngestRequest{DocumentId: "d", TenantId: tenant}, errors_i.CodeValidationEmptyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Process(context.Background(), tt.req)
			assert.Equal(t, tt.code, errors_i.CodeOf(err))
		})
	}
}

func TestProcess_DeadlineFailsAfterInFlightCallsFinish(t *testing.T) {
	f := newFixture(t, true)
	f.pipeline.settings.DocumentTimeout = 50 * time.Millisecond
	f.pipeline.settings.EmbedConcurrency = 2
	f.pending(t, "doc-1")

	var finished atomic.Int32
	f.gen.OnText = func(text string) ([]float32, error) {
		if !strings.HasPrefix(text, "a") {
			time.Sleep(100 * time.Millisecond)
		}
		finished.Add(1)
		return []float32{1, 1, 1}, nil
	}
	text := strings.Repeat("a", 80) + strings.Repeat("b", 170)

	res, err := f.pipeline.Process(context.Background(), request("doc-1", text))
	require.Error(t, err)
	assert.True(t, errors_i.HasCode(err, errors_i.CodePipelineDocumentTimeout))
	assert.Equal(t, commonModels.StatusFailed, res.Status)
	assert.Equal(t, int32(3), finished.Load(), "calls already started run to completion")

	doc := f.status(t, "doc-1")
	assert.Equal(t, commonModels.StatusFailed, doc.Status)
	assert.Contains(t, doc.Reason, "timed out")

	count, err := f.vectors.CountByDocument(context.Background(), tenant, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcess_DeadlineStopsNewCalls(t *testing.T) {
	f := newFixture(t, true)
	f.pipeline.settings.DocumentTimeout = 30 * time.Millisecond
	f.pipeline.settings.EmbedConcurrency = 1
	f.pending(t, "doc-1")

	f.gen.OnText = func(text string) ([]float32, error) {
		time.Sleep(80 * time.Millisecond)
		return []float32{1, 1, 1}, nil
	}

	res, err := f.pipeline.Process(context.Background(), request("doc-1", strings.Repeat("a", 250)))
	require.Error(t, err)
	assert.True(t, errors_i.HasCode(err, errors_i.CodePipelineDocumentTimeout))
	assert.Equal(t, commonModels.StatusFailed, res.Status)
	assert.Equal(t, int32(1), f.gen.calls.Load(), "only the call started before the deadline runs")
	assert.Equal(t, []int{1, 2}, res.FailedChunks)
}

// rejectingStore drops the passage for one chunk index and reports it the way backends do.
type rejectingStore struct {
	vectorDB.VectorStore
	rejectChunk int
}

func (s rejectingStore) InsertMany(ctx context.Context, tenantId, documentId string, passages []commonModels.PassageInput) (int, error) {
	var (
		kept     []commonModels.PassageInput
		rejected vectorDB.Rejections
	)
	for i, p := range passages {
		if p.ChunkIndex != nil && *p.ChunkIndex == s.rejectChunk {
			rejected.Add(i, errors_i.New(errors_i.CodeStoreIOFailure, "row rejected"))
			continue
		}
		kept = append(kept, p)
	}
	n, err := s.VectorStore.InsertMany(ctx, tenantId, documentId, kept)
	if err != nil {
		return n, err
	}
	return n, rejected.Err()
}

func TestProcess_PartialInsertKeepsStoredPassages(t *testing.T) {
	f := newFixture(t, true)
	f.pipeline.store = rejectingStore{VectorStore: f.vectors, rejectChunk: 0}
	f.pending(t, "doc-1")

	res, err := f.pipeline.Process(context.Background(), request("doc-1", strings.Repeat("a", 250)))
	require.NoError(t, err)
	assert.Equal(t, commonModels.StatusProcessed, res.Status)
	assert.Equal(t, 2, res.ChunkCount)
	assert.Equal(t, []int{0}, res.FailedChunks)

	count, err := f.vectors.CountByDocument(context.Background(), tenant, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcess_InsertStoringNothingFails(t *testing.T) {
	f := newFixture(t, true)
	f.pipeline.store = rejectingStore{VectorStore: f.vectors, rejectChunk: 0}
	f.pending(t, "doc-1")

	// one chunk only, and it is rejected
	res, err := f.pipeline.Process(context.Background(), request("doc-1", strings.Repeat("a", 60)))
	require.Error(t, err)
	assert.True(t, errors_i.HasCode(err, errors_i.CodeStoreIOFailure))
	assert.Equal(t, commonModels.StatusFailed, res.Status)
}

func TestMergeIndexes(t *testing.T) {
	assert.Equal(t, []int{1, 2, 4}, mergeIndexes([]int{2, 4}, []int{1, 2}))
	assert.Equal(t, []int{3}, mergeIndexes(nil, []int{3}))
	assert.Equal(t, []int{5}, mergeIndexes([]int{5}, nil))
}

func TestChunkConfigPrecedence(t *testing.T) {
	p := NewPipeline(nil, nil, nil, nil, Settings{
		DefaultChunkConfig: commonModels.ChunkConfig{Size: 1000, Overlap: 200},
		TenantChunkConfigs: map[string]commonModels.ChunkConfig{"big": {Size: 4000, Overlap: 400}},
	})

	assert.Equal(t, commonModels.ChunkConfig{Size: 1000, Overlap: 200}, p.chunkConfig("acme", commonModels.ChunkConfig{}))
	assert.Equal(t, commonModels.ChunkConfig{Size: 4000, Overlap: 400}, p.chunkConfig("big", commonModels.ChunkConfig{}))
	assert.Equal(t, commonModels.ChunkConfig{Size: 50, Overlap: 5}, p.chunkConfig("big", commonModels.ChunkConfig{Size: 50, Overlap: 5}))
}

func TestReadUpload_MissingFile(t *testing.T) {
	_, err := readUpload(commonModels.IngestRequest{FilePath: filepath.Join(t.TempDir(), "gone")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
