package qdrantDB

import (
	"errors"
	"testing"
	"time"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToPoint_InjectsReservedFields(t *testing.T) {
	p := commonModels.PassageInput{
		ChunkText: "hello",
		Embedding: []float32{1, 0, 0},
		Metadata:  map[string]any{"fileName": "a.pdf", "chunkIndex": 42, "documentId": "spoof"},
	}
	point, err := toPoint("acme", "doc-1", 3, p, time.Unix(0, 0))
	require.NoError(t, err)

	payload := point.GetPayload()
	assert.Equal(t, "doc-1", payload[commonModels.MetaDocumentId].GetStringValue())
	assert.Equal(t, "hello", payload[commonModels.MetaChunkText].GetStringValue())
	assert.Equal(t, int64(3), payload[commonModels.MetaChunkIndex].GetIntegerValue())
	assert.Equal(t, "a.pdf", payload["fileName"].GetStringValue())

	again, err := toPoint("acme", "doc-1", 3, p, time.Now())
	require.NoError(t, err)
	assert.Equal(t, point.GetId().GetUuid(), again.GetId().GetUuid(), "ids are stable per chunk")
}

func TestToHit(t *testing.T) {
	point := &qdrant.ScoredPoint{
		Score: 0.75,
		Payload: qdrant.NewValueMap(map[string]any{
			"documentId": "doc-1",
			"chunkText":  "hello",
			"chunkIndex": 2,
			"fileName":   "a.pdf",
			"createdAt":  "2024-01-01T00:00:00Z",
			"tags":       []any{"x", "y"},
		}),
	}

	hit := toHit(point)
	assert.Equal(t, "doc-1", hit.DocumentId)
	assert.Equal(t, "hello", hit.ChunkText)
	assert.InDelta(t, 0.25, hit.Distance, 1e-6)
	assert.Equal(t, 2, hit.Metadata["chunkIndex"])
	assert.Equal(t, "a.pdf", hit.Metadata["fileName"])
	assert.Equal(t, []any{"x", "y"}, hit.Metadata["tags"])
	assert.NotContains(t, hit.Metadata, "createdAt")
	assert.NotContains(t, hit.Metadata, "documentId")
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, isAlreadyExists(status.Error(codes.AlreadyExists, "exists")))
	assert.True(t, isAlreadyExists(status.Error(codes.InvalidArgument, "Wrong input: Collection `x` already exists!")))
	assert.False(t, isAlreadyExists(errors.New("connection refused")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(status.Error(codes.NotFound, "missing")))
	assert.False(t, isNotFound(status.Error(codes.Unavailable, "down")))
}
