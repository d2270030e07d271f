package api

import "time"

type DocumentResponse struct {
	Id           string    `json:"id" example:"0b8f3c1e-6f0a-4a53-9d0e-1e6b7f0f2a11"`
	TenantId     string    `json:"tenant_id" example:"acme"`
	FileName     string    `json:"file_name" example:"handbook.pdf"`
	FileType     string    `json:"file_type,omitempty" example:"application/pdf"`
	Status       string    `json:"status" example:"PROCESSED"`
	ChunkCount   int       `json:"chunk_count"`
	TotalChunks  int       `json:"total_chunks,omitempty"`
	FailedChunks []int     `json:"failed_chunks,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type IngestAcceptedResponse struct {
	DocumentId string `json:"document_id"`
	Status     string `json:"status"`
	StatusURL  string `json:"status_url"`
}

type RemoveDocumentResponse struct {
	DocumentId      string `json:"document_id"`
	RemovedPassages int    `json:"removed_passages"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code" example:"store.not_provisioned"`
	Message string `json:"message"`
	Retry   bool   `json:"can_retry"`
	TraceId string `json:"trace_id,omitempty"`
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// retrieval------------------

type RetrieveHit struct {
	DocumentId string         `json:"document_id"`
	ChunkIndex *int           `json:"chunk_index,omitempty"`
	ChunkText  string         `json:"chunk_text"`
	Distance   float64        `json:"distance"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type RetrieveResponse struct {
	TenantId string        `json:"tenant_id"`
	Hits     []RetrieveHit `json:"hits"`
}
