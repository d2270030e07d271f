package vectorDB

import (
	"context"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
)

// TenantStoreManager provisions and inspects per-tenant stores.
type TenantStoreManager interface {
	// Provision is idempotent and safe to call concurrently for one tenant.
	Provision(ctx context.Context, tenantId string) (commonModels.StoreHandle, error)
	Exists(ctx context.Context, tenantId string) (bool, error)
	HandleFor(tenantId string) (commonModels.StoreHandle, error)
	// Drop removes the store and every passage in it. Ingestion never calls it.
	Drop(ctx context.Context, tenantId string) error
	List(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, tenantId string) (commonModels.StoreStats, error)
}

// VectorStore reads and writes passages of one tenant store. Nothing here
// provisions; a missing store is store.not_provisioned.
type VectorStore interface {
	InsertMany(ctx context.Context, tenantId, documentId string, passages []commonModels.PassageInput) (int, error)
	Search(ctx context.Context, tenantId string, query []float32, limit int, documentId string) ([]commonModels.SearchHit, error)
	// DeleteByDocument returns 0 without error when the store is missing.
	DeleteByDocument(ctx context.Context, tenantId, documentId string) (int, error)
	CountByDocument(ctx context.Context, tenantId, documentId string) (int, error)
}

// Backend is one storage engine serving both roles.
type Backend interface {
	TenantStoreManager
	VectorStore
	Ping(ctx context.Context) error
	Close() error
}
