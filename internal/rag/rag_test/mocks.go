package rag_test

import (
	"context"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
)

// MockVectorStore implements vectorDB.VectorStore
type MockVectorStore struct {
	OnInsertMany       func(ctx context.Context, tenantId, documentId string, passages []commonModels.PassageInput) (int, error)
	OnSearch           func(ctx context.Context, tenantId string, query []float32, limit int, documentId string) ([]commonModels.SearchHit, error)
	OnDeleteByDocument func(ctx context.Context, tenantId, documentId string) (int, error)
	OnCountByDocument  func(ctx context.Context, tenantId, documentId string) (int, error)
}

func (m *MockVectorStore) InsertMany(ctx context.Context, tenantId, documentId string, passages []commonModels.PassageInput) (int, error) {
	if m.OnInsertMany != nil {
		return m.OnInsertMany(ctx, tenantId, documentId, passages)
	}
	return len(passages), nil
}

func (m *MockVectorStore) Search(ctx context.Context, tenantId string, query []float32, limit int, documentId string) ([]commonModels.SearchHit, error) {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, tenantId, query, limit, documentId)
	}
	return []commonModels.SearchHit{{DocumentId: "doc-1", ChunkText: "default context"}}, nil
}

func (m *MockVectorStore) DeleteByDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if m.OnDeleteByDocument != nil {
		return m.OnDeleteByDocument(ctx, tenantId, documentId)
	}
	return 0, nil
}

func (m *MockVectorStore) CountByDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if m.OnCountByDocument != nil {
		return m.OnCountByDocument(ctx, tenantId, documentId)
	}
	return 0, nil
}

// MockGenerator implements embedding.VectorGenerator
type MockGenerator struct {
	OnEmbed func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

// MockProcessor implements rag.Processor
type MockProcessor struct {
	OnProcess func(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error)
}

func (m *MockProcessor) Process(ctx context.Context, req commonModels.IngestRequest) (commonModels.IngestResult, error) {
	if m.OnProcess != nil {
		return m.OnProcess(ctx, req)
	}
	return commonModels.IngestResult{DocumentId: req.DocumentId, Status: commonModels.StatusProcessed}, nil
}
