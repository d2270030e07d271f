package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/akolanti/TenantRAG/internal/adapter"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/rag"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

const maxUploadSize = 32 << 20 //32mb

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	service      rag.Service
	dependencies map[string]Pinger
	uploadDir    string
	logger       *logger_i.Logger
}

func NewHandlers(service rag.Service, uploadDir string, dependencies map[string]Pinger) *Handlers {
	return &Handlers{
		service:      service,
		dependencies: dependencies,
		uploadDir:    uploadDir,
		logger:       logger_i.NewLogger("RequestHandler"),
	}
}

// PostDocumentHandler accepts a multipart upload and queues it for ingestion.
// Form fields: tenant_id, document (file), and optional document_id, chunk_size, chunk_overlap.
func (h *Handlers) PostDocumentHandler(w http.ResponseWriter, r *http.Request) {
	log := h.logger.FromContext(r.Context())
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteErrorResponse(w, r, http.StatusBadRequest, errors_i.CodeValidationInvalidInput, "File too large or bad request")
		return
	}

	tenantId := r.FormValue("tenant_id")
	if tenantId == "" {
		WriteErrorResponse(w, r, http.StatusBadRequest, errors_i.CodeValidationInvalidTenant, "tenant_id is required")
		return
	}
	chunkConfig, ok := parseChunkConfig(r)
	if !ok {
		WriteErrorResponse(w, r, http.StatusBadRequest, errors_i.CodeValidationInvalidChunkConfig, "chunk_size and chunk_overlap must be integers")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, r, http.StatusBadRequest, errors_i.CodeValidationEmptyInput, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	path, err := h.saveUpload(fileReader, fileMetadata.Filename)
	if err != nil {
		log.Error("Couldn't store upload", "error", err)
		WriteErrorResponse(w, r, http.StatusInternalServerError, errors_i.CodeStoreIOFailure, "Storage error")
		return
	}

	doc, err := h.service.Submit(r.Context(), commonModels.IngestRequest{
		DocumentId:  r.FormValue("document_id"),
		TenantId:    tenantId,
		FileName:    fileMetadata.Filename,
		MimeType:    fileMetadata.Header.Get("Content-Type"),
		FilePath:    path,
		ChunkConfig: chunkConfig,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.Info("Document queued", "documentId", doc.Id, "tenantId", tenantId)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToAcceptedResponse(doc))
}

// GetDocumentHandler returns the catalog record. tenant_id in the query must own it.
func (h *Handlers) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenantId := r.URL.Query().Get("tenant_id")

	doc, found, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !found || (tenantId != "" && doc.TenantId != tenantId) {
		WriteErrorResponse(w, r, http.StatusNotFound, errors_i.CodePipelineDocumentNotFound, "Document not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentResponse(doc))
}

func (h *Handlers) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenantId := r.URL.Query().Get("tenant_id")
	if tenantId == "" {
		WriteErrorResponse(w, r, http.StatusBadRequest, errors_i.CodeValidationInvalidTenant, "tenant_id is required")
		return
	}

	removed, err := h.service.RemoveDocument(r.Context(), tenantId, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToRemoveResponse(id, removed))
}

func parseChunkConfig(r *http.Request) (commonModels.ChunkConfig, bool) {
	var cfg commonModels.ChunkConfig
	for field, dst := range map[string]*int{"chunk_size": &cfg.Size, "chunk_overlap": &cfg.Overlap} {
		raw := r.FormValue(field)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, false
		}
		*dst = n
	}
	return cfg, true
}
