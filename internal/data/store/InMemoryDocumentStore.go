package store

import (
	"context"
	"sort"
	"sync"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem DocumentStore")

type InMemoryDocumentStore struct {
	mu      *sync.RWMutex
	docs    map[string]commonModels.Document
	tenants map[string]struct{}
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		mu:      new(sync.RWMutex),
		docs:    make(map[string]commonModels.Document),
		tenants: make(map[string]struct{}),
	}
}

func (store *InMemoryDocumentStore) SaveDocument(ctx context.Context, doc commonModels.Document) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	doc.FailedChunks = append([]int(nil), doc.FailedChunks...)
	store.docs[doc.Id] = doc
	if doc.TenantId != "" {
		store.tenants[doc.TenantId] = struct{}{}
	}
	inMemLogger.Debug("Saved document to store", "documentId", doc.Id, "status", doc.Status)
	return nil
}

func (store *InMemoryDocumentStore) GetDocument(ctx context.Context, documentId string) (commonModels.Document, bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	doc, found := store.docs[documentId]
	return doc, found, nil
}

func (store *InMemoryDocumentStore) DeleteDocument(ctx context.Context, documentId string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.docs, documentId)
	return nil
}

func (store *InMemoryDocumentStore) ListTenants(ctx context.Context) ([]string, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	out := make([]string, 0, len(store.tenants))
	for t := range store.tenants {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}
