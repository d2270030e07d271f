package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/data/redisStore"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

const (
	documentKeyPrefix = "document:"
	tenantIndexKey    = "tenants"
)

type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisDocumentStore(store *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  store,
		logger: logger_i.NewLogger("DocumentStore"),
	}
}

func documentKey(id string) string {
	return documentKeyPrefix + id
}

func (s *RedisDocumentStore) SaveDocument(ctx context.Context, doc commonModels.Document) error {
	log := s.logger.FromContext(ctx).With("documentId", doc.Id, "status", doc.Status)
	log.Debug("saving document")
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if err = s.store.Set(ctx, documentKey(doc.Id), data, config.RedisDocumentTTL); err != nil {
		return err
	}
	if doc.TenantId != "" {
		if err = s.store.SetAdd(ctx, tenantIndexKey, doc.TenantId); err != nil {
			return err
		}
	}
	log.Debug("Saved document to Redis")
	return nil
}

func (s *RedisDocumentStore) GetDocument(ctx context.Context, documentId string) (commonModels.Document, bool, error) {
	var doc commonModels.Document
	val, err := s.store.Get(ctx, documentKey(documentId))
	if s.store.IsNil(err) {
		return doc, false, nil
	} else if err != nil {
		return doc, false, err
	}

	if err = json.Unmarshal([]byte(val), &doc); err != nil {
		return doc, false, err
	}
	if !doc.Status.Valid() {
		return doc, false, fmt.Errorf("document %s has unknown status %q", documentId, doc.Status)
	}
	return doc, true, nil
}

func (s *RedisDocumentStore) DeleteDocument(ctx context.Context, documentId string) error {
	if err := s.store.Del(ctx, documentKey(documentId)); err != nil {
		s.logger.Error("Error deleting document from Redis", "documentId", documentId, "error", err)
		return err
	}
	s.logger.Debug("Document deleted from Redis", "documentId", documentId)
	return nil
}

// ListTenants returns every tenant that ever had a document, sorted.
func (s *RedisDocumentStore) ListTenants(ctx context.Context) ([]string, error) {
	tenants, err := s.store.SetMembers(ctx, tenantIndexKey)
	if err != nil {
		return nil, err
	}
	sort.Strings(tenants)
	return tenants, nil
}
