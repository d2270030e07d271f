package qdrantDB

import (
	"time"

	"github.com/akolanti/TenantRAG/internal/adapter/utils"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/qdrant/go-client/qdrant"
)

const payloadCreatedAt = "createdAt"

func toPoint(tenantId, documentId string, chunkIndex int, p commonModels.PassageInput, now time.Time) (*qdrant.PointStruct, error) {
	payload := vectorDB.PassageMetadata(chunkIndex, p.Metadata)
	payload[commonModels.MetaDocumentId] = documentId
	payload[commonModels.MetaChunkText] = p.ChunkText
	payload[payloadCreatedAt] = now.Format(time.RFC3339Nano)

	values, err := qdrant.TryValueMap(payload)
	if err != nil {
		return nil, err
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(utils.PointIdFor(tenantId, documentId, chunkIndex)),
		Vectors: qdrant.NewVectors(p.Embedding...),
		Payload: values,
	}, nil
}

// toHit converts a scored point. Qdrant reports cosine similarity; distance is 1 - similarity.
func toHit(point *qdrant.ScoredPoint) commonModels.SearchHit {
	meta := make(map[string]any, len(point.GetPayload()))
	for k, v := range point.GetPayload() {
		meta[k] = valueToAny(v)
	}

	hit := commonModels.SearchHit{
		Distance: 1 - float64(point.GetScore()),
	}
	if v, ok := meta[commonModels.MetaDocumentId].(string); ok {
		hit.DocumentId = v
	}
	if v, ok := meta[commonModels.MetaChunkText].(string); ok {
		hit.ChunkText = v
	}
	delete(meta, commonModels.MetaDocumentId)
	delete(meta, commonModels.MetaChunkText)
	delete(meta, payloadCreatedAt)
	if idx, ok := vectorDB.MetadataInt(meta, commonModels.MetaChunkIndex); ok {
		meta[commonModels.MetaChunkIndex] = idx
	}
	hit.Metadata = meta
	return hit
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(kind.StructValue.GetFields()))
		for k, f := range kind.StructValue.GetFields() {
			out[k] = valueToAny(f)
		}
		return out
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueToAny(item)
		}
		return out
	}
	return nil
}
