package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
)

type JobStatus string
type InternalStatus string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "ERROR"

	IngestInit InternalStatus = "IngestInit"
	Complete   InternalStatus = "Complete"
	Error      InternalStatus = "Error"
)

// IngestJob is the queued unit of work handed to the worker pool.
type IngestJob struct {
	Id          string                   `json:"id"`
	TraceId     string                   `json:"trace_id"`
	DocumentId  string                   `json:"document_id"`
	TenantId    string                   `json:"tenant_id"`
	FileName    string                   `json:"file_name"`
	MimeType    string                   `json:"mime_type"`
	FilePath    string                   `json:"file_path"`
	ChunkConfig commonModels.ChunkConfig `json:"chunk_config,omitempty"`
	Metadata    map[string]any           `json:"metadata,omitempty"`
	CreatedTime time.Time                `json:"created_time"`
	Status      JobStatus                `json:"status"`
	CurrentStep InternalStatus           `json:"current_step"`
	Error       JobError                 `json:"error,omitempty"`
}

type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

func (j IngestJob) Request() commonModels.IngestRequest {
	return commonModels.IngestRequest{
		DocumentId:  j.DocumentId,
		TenantId:    j.TenantId,
		FileName:    j.FileName,
		MimeType:    j.MimeType,
		FilePath:    j.FilePath,
		ChunkConfig: j.ChunkConfig,
		Metadata:    j.Metadata,
	}
}

// DocumentStore is the document catalog the pipeline reads and updates.
type DocumentStore interface {
	GetDocument(ctx context.Context, documentId string) (commonModels.Document, bool, error)
	SaveDocument(ctx context.Context, doc commonModels.Document) error
	DeleteDocument(ctx context.Context, documentId string) error
	ListTenants(ctx context.Context) ([]string, error)
}

// JobQueue hands ingest jobs to workers. Dequeue blocks up to timeout and
// returns ok=false when nothing arrived.
type JobQueue interface {
	Enqueue(ctx context.Context, job IngestJob) error
	Dequeue(ctx context.Context, timeout time.Duration) (IngestJob, bool, error)
	Len(ctx context.Context) (int64, error)
}
