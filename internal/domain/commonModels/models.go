package commonModels

import (
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
)

type DocStatus string

const (
	StatusPending    DocStatus = "PENDING"
	StatusProcessing DocStatus = "PROCESSING"
	StatusProcessed  DocStatus = "PROCESSED"
	StatusFailed     DocStatus = "FAILED"
)

func (s DocStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

func (s DocStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// Document is the catalog record. Status is only mutated by the ingestion pipeline.
type Document struct {
	Id           string      `json:"id"`
	TenantId     string      `json:"tenant_id"`
	FileName     string      `json:"file_name"`
	FileType     string      `json:"file_type"`
	Status       DocStatus   `json:"status"`
	ChunkCount   int         `json:"chunk_count"`
	TotalChunks  int         `json:"total_chunks,omitempty"`
	FailedChunks []int       `json:"failed_chunks,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	ChunkConfig  ChunkConfig `json:"chunk_config,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// StoreHandle names a tenant's physical store. Table doubles as the collection name.
type StoreHandle struct {
	TenantId  string `json:"tenant_id"`
	Namespace string `json:"namespace"`
	Table     string `json:"table"`
}

// Qualified is the flat name used by backends without schemas.
func (h StoreHandle) Qualified() string {
	return h.Namespace + "__" + h.Table
}

const (
	MetaChunkIndex = "chunkIndex"
	MetaFileName   = "fileName"
	MetaFileType   = "fileType"
	MetaDocumentId = "documentId"
	MetaChunkText  = "chunkText"
)

// ReservedMetadataKeys cannot be set by callers.
var ReservedMetadataKeys = []string{MetaChunkIndex, MetaDocumentId, MetaChunkText}

type Passage struct {
	Id         string         `json:"id"`
	DocumentId string         `json:"document_id"`
	ChunkText  string         `json:"chunk_text"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

type PassageInput struct {
	ChunkText string
	Embedding []float32
	Metadata  map[string]any
	// ChunkIndex pins the stored chunkIndex. When nil the input position is used.
	ChunkIndex *int
}

type SearchHit struct {
	DocumentId string         `json:"document_id"`
	ChunkText  string         `json:"chunk_text"`
	Metadata   map[string]any `json:"metadata"`
	Distance   float64        `json:"distance"`
}

// ChunkConfig zero values mean "use the default".
type ChunkConfig struct {
	Size    int `json:"size,omitempty"`
	Overlap int `json:"overlap,omitempty"`
}

func (c ChunkConfig) IsZero() bool {
	return c.Size == 0 && c.Overlap == 0
}

// Resolve fills unset fields from fallback, then from the global defaults.
func (c ChunkConfig) Resolve(fallback ChunkConfig) ChunkConfig {
	if c.IsZero() {
		c = fallback
	}
	if c.Size == 0 {
		c.Size = config.DefaultChunkSize
		if c.Overlap == 0 {
			c.Overlap = config.DefaultChunkOverlap
		}
	}
	return c
}

type StoreStats struct {
	TenantId       string `json:"tenant_id"`
	Table          string `json:"table"`
	TotalPassages  int64  `json:"total_passages"`
	TotalDocuments int64  `json:"total_documents"`
	SizeBytes      int64  `json:"size_bytes"`
}

type ProvisionReport struct {
	Created  []string          `json:"created"`
	Existing []string          `json:"existing"`
	Failed   map[string]string `json:"failed,omitempty"`
}

type IngestRequest struct {
	DocumentId  string
	TenantId    string
	FileName    string
	MimeType    string
	FilePath    string // temp upload, released after processing
	Data        []byte // used when FilePath is empty
	ChunkConfig ChunkConfig
	Metadata    map[string]any
}

type IngestResult struct {
	DocumentId   string    `json:"document_id"`
	Status       DocStatus `json:"status"`
	ChunkCount   int       `json:"chunk_count"`
	TotalChunks  int       `json:"total_chunks"`
	FailedChunks []int     `json:"failed_chunks,omitempty"`
}
