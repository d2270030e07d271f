package mcpServer

import (
	"context"

	"github.com/akolanti/TenantRAG/internal/adapter"
	"github.com/akolanti/TenantRAG/internal/api"
	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type RetrieveInput struct {
	TenantId   string `json:"tenant_id" jsonschema:"tenant whose documents are searched"`
	Query      string `json:"query" jsonschema:"natural language query"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 5)"`
	DocumentId string `json:"document_id,omitempty" jsonschema:"restrict the search to one document"`
}

type RetrieveOutput struct {
	TenantId string            `json:"tenant_id"`
	Hits     []api.RetrieveHit `json:"hits"`
	Count    int               `json:"count"`
}

type DocumentStatusInput struct {
	DocumentId string `json:"document_id" jsonschema:"id returned when the document was submitted"`
}

type DocumentStatusOutput struct {
	DocumentId   string `json:"document_id"`
	TenantId     string `json:"tenant_id"`
	Status       string `json:"status"`
	ChunkCount   int    `json:"chunk_count"`
	TotalChunks  int    `json:"total_chunks,omitempty"`
	FailedChunks []int  `json:"failed_chunks,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the passages of a tenant's documents closest to a query",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Report the ingestion status of a document",
	}, s.handleDocumentStatus)
}

func (s *Server) handleRetrieve(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (*mcp.CallToolResult, RetrieveOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = config.DefaultRetrieveLimit
	}

	hits, err := s.documents.Retrieve(ctx, input.TenantId, input.Query, limit, input.DocumentId)
	if err != nil {
		s.logger.FromContext(ctx).Warn("retrieve tool failed", "tenantId", input.TenantId, "code", errors_i.CodeOf(err), "error", err)
		return nil, RetrieveOutput{}, err
	}

	res := adapter.ToRetrieveResponse(input.TenantId, hits)
	return nil, RetrieveOutput{TenantId: res.TenantId, Hits: res.Hits, Count: len(res.Hits)}, nil
}

func (s *Server) handleDocumentStatus(ctx context.Context, _ *mcp.CallToolRequest, input DocumentStatusInput) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	if input.DocumentId == "" {
		return nil, DocumentStatusOutput{}, errors_i.New(errors_i.CodeValidationInvalidInput, "document_id is required")
	}
	doc, found, err := s.documents.GetDocument(ctx, input.DocumentId)
	if err != nil {
		return nil, DocumentStatusOutput{}, err
	}
	if !found {
		return nil, DocumentStatusOutput{}, errors_i.New(errors_i.CodePipelineDocumentNotFound, "document not found", errors_i.FieldDocument(input.DocumentId))
	}
	return nil, DocumentStatusOutput{
		DocumentId:   doc.Id,
		TenantId:     doc.TenantId,
		Status:       string(doc.Status),
		ChunkCount:   doc.ChunkCount,
		TotalChunks:  doc.TotalChunks,
		FailedChunks: doc.FailedChunks,
		Reason:       doc.Reason,
	}, nil
}
