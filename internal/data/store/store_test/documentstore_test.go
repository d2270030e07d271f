package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/data/redisStore"
	"github.com/akolanti/TenantRAG/internal/data/store"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *redisStore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redisStore.NewTestStore(client)
}

func testDocument(id, tenant string) commonModels.Document {
	return commonModels.Document{
		Id:           id,
		TenantId:     tenant,
		FileName:     "report.pdf",
		FileType:     "application/pdf",
		Status:       commonModels.StatusProcessed,
		ChunkCount:   3,
		TotalChunks:  4,
		FailedChunks: []int{2},
	}
}

func TestRedisDocumentStore_Lifecycle(t *testing.T) {
	mr, internalStore := newRedisStore(t)
	docStore := store.NewRedisDocumentStore(internalStore)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")

	doc := testDocument("doc-1", "acme")

	t.Run("save and get", func(t *testing.T) {
		require.NoError(t, docStore.SaveDocument(ctx, doc))

		got, found, err := docStore.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, doc.TenantId, got.TenantId)
		assert.Equal(t, commonModels.StatusProcessed, got.Status)
		assert.Equal(t, []int{2}, got.FailedChunks)
		assert.Equal(t, 4, got.TotalChunks)
	})

	t.Run("missing document", func(t *testing.T) {
		_, found, err := docStore.GetDocument(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("tenants are indexed", func(t *testing.T) {
		require.NoError(t, docStore.SaveDocument(ctx, testDocument("doc-2", "beta")))
		require.NoError(t, docStore.SaveDocument(ctx, testDocument("doc-3", "acme")))

		tenants, err := docStore.ListTenants(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"acme", "beta"}, tenants)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, docStore.DeleteDocument(ctx, "doc-1"))
		assert.False(t, mr.Exists("document:doc-1"))

		_, found, err := docStore.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRedisDocumentStore_CorruptPayload(t *testing.T) {
	mr, internalStore := newRedisStore(t)
	docStore := store.NewRedisDocumentStore(internalStore)

	require.NoError(t, mr.Set("document:bad", "{not json"))
	_, found, err := docStore.GetDocument(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, found)

	require.NoError(t, mr.Set("document:odd", `{"id":"odd","tenant_id":"acme","status":"DONE"}`))
	_, found, err = docStore.GetDocument(context.Background(), "odd")
	assert.ErrorContains(t, err, "unknown status")
	assert.False(t, found)
}

func TestRedisDocumentStore_Race(t *testing.T) {
	_, internalStore := newRedisStore(t)
	docStore := store.NewRedisDocumentStore(internalStore)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := testDocument("shared", "acme")
			_ = docStore.SaveDocument(ctx, doc)
			_, _, _ = docStore.GetDocument(ctx, "shared")
		}()
	}
	wg.Wait()

	_, found, err := docStore.GetDocument(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestInMemoryDocumentStore(t *testing.T) {
	docStore := store.InitInMemoryDocumentStore()
	ctx := context.Background()

	doc := testDocument("doc-1", "acme")
	require.NoError(t, docStore.SaveDocument(ctx, doc))
	doc.FailedChunks[0] = 99

	got, found, err := docStore.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int{2}, got.FailedChunks, "stored copy must not alias the caller slice")

	require.NoError(t, docStore.SaveDocument(ctx, testDocument("doc-2", "beta")))
	tenants, err := docStore.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "beta"}, tenants)

	require.NoError(t, docStore.DeleteDocument(ctx, "doc-1"))
	_, found, _ = docStore.GetDocument(ctx, "doc-1")
	assert.False(t, found)
}

func TestRedisJobQueue_FIFO(t *testing.T) {
	_, internalStore := newRedisStore(t)
	queue := store.NewRedisJobQueue(internalStore, "ingest:jobs")
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, queue.Enqueue(ctx, jobModel.IngestJob{Id: id, DocumentId: "doc-" + id, TenantId: "acme"}))
	}

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, want := range []string{"a", "b", "c"} {
		job, ok, err := queue.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, job.Id)
		assert.Equal(t, "acme", job.TenantId)
	}
}

func TestInMemoryJobQueue(t *testing.T) {
	queue := store.InitInMemoryJobQueue(2)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, jobModel.IngestJob{Id: "a"}))
	n, _ := queue.Len(ctx)
	assert.Equal(t, int64(1), n)

	job, ok, err := queue.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", job.Id)

	_, ok, err = queue.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "empty queue times out")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = queue.Dequeue(cancelled, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
