package adapter

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/akolanti/TenantRAG/internal/api"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
)

func ToAcceptedResponse(doc commonModels.Document) api.IngestAcceptedResponse {
	return api.IngestAcceptedResponse{
		DocumentId: doc.Id,
		Status:     string(doc.Status),
		StatusURL:  fmt.Sprintf("documents/%s", doc.Id),
	}
}

func ToDocumentResponse(doc commonModels.Document) api.DocumentResponse {
	return api.DocumentResponse{
		Id:           doc.Id,
		TenantId:     doc.TenantId,
		FileName:     doc.FileName,
		FileType:     doc.FileType,
		Status:       string(doc.Status),
		ChunkCount:   doc.ChunkCount,
		TotalChunks:  doc.TotalChunks,
		FailedChunks: doc.FailedChunks,
		Reason:       doc.Reason,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

// ToRetrieveResponse moves chunkIndex out of the metadata and drops the reserved keys.
func ToRetrieveResponse(tenantId string, hits []commonModels.SearchHit) api.RetrieveResponse {
	out := api.RetrieveResponse{TenantId: tenantId, Hits: make([]api.RetrieveHit, 0, len(hits))}
	for _, h := range hits {
		hit := api.RetrieveHit{
			DocumentId: h.DocumentId,
			ChunkText:  h.ChunkText,
			Distance:   h.Distance,
		}
		if idx, ok := vectorDB.MetadataInt(h.Metadata, commonModels.MetaChunkIndex); ok {
			hit.ChunkIndex = &idx
		}
		for k, v := range h.Metadata {
			if slices.Contains(commonModels.ReservedMetadataKeys, k) {
				continue
			}
			if hit.Metadata == nil {
				hit.Metadata = map[string]any{}
			}
			hit.Metadata[k] = v
		}
		out.Hits = append(out.Hits, hit)
	}
	return out
}

func ToErrorResponse(err error, traceId string) api.ErrorResponse {
	code := errors_i.CodeOf(err)
	if code == "" {
		code = "internal"
	}
	message := err.Error()
	if errors_i.FamilyOf(err) == errors_i.FamilyUnknown {
		message = "Internal Server Error"
	}
	return api.ErrorResponse{Error: api.ErrorBody{
		Code:    string(code),
		Message: message,
		Retry:   errors_i.IsTransient(err),
		TraceId: traceId,
	}}
}

func BadRequest(code errors_i.Code, message string, traceId string) api.ErrorResponse {
	return api.ErrorResponse{Error: api.ErrorBody{Code: string(code), Message: message, TraceId: traceId}}
}

// HTTPStatusFor maps an error family or code to a response status.
func HTTPStatusFor(err error) int {
	switch errors_i.CodeOf(err) {
	case errors_i.CodePipelineDocumentNotFound:
		return http.StatusNotFound
	case errors_i.CodePipelineInvalidTransition:
		return http.StatusConflict
	case errors_i.CodeStoreNotProvisioned:
		return http.StatusFailedDependency
	case errors_i.CodeEmbeddingServiceUnavailable:
		return http.StatusServiceUnavailable
	case errors_i.CodeExtractionUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case errors_i.CodePipelineDocumentTimeout:
		return http.StatusGatewayTimeout
	}
	switch errors_i.FamilyOf(err) {
	case errors_i.FamilyValidation, errors_i.FamilyExtraction:
		return http.StatusBadRequest
	case errors_i.FamilyPipeline:
		return http.StatusUnprocessableEntity
	case errors_i.FamilyEmbedding:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func ToRemoveResponse(documentId string, removed int) api.RemoveDocumentResponse {
	return api.RemoveDocumentResponse{DocumentId: documentId, RemovedPassages: removed}
}
