package chromemDB

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/akolanti/TenantRAG/internal/adapter/utils"
	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/philippgille/chromem-go"
)

const (
	metaExtra     = "extra"
	metaCreatedAt = "createdAt"
	metaDimension = "dimension"
)

// Store is the embedded backend used for local runs and tests. An empty path keeps everything in memory.
type Store struct {
	db        *chromem.DB
	namespace string
	dimension int
	logger    *logger_i.Logger
}

var _ vectorDB.Backend = (*Store)(nil)

func Open(cfg config.ChromemConfig, namespace string, dimension int) (*Store, error) {
	logger := logger_i.NewLogger("chromem")
	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
		logger.Info("chromem running in memory")
	} else {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem at %s: %w", cfg.Path, err)
		}
		logger.Info("chromem opened", "path", cfg.Path)
	}
	return &Store{db: db, namespace: namespace, dimension: dimension, logger: logger}, nil
}

// NewInMemory is a shortcut for tests.
func NewInMemory(namespace string, dimension int) *Store {
	s, _ := Open(config.ChromemConfig{}, namespace, dimension)
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// vectors are always supplied by the caller, so the collection never embeds on its own
func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem store expects precomputed embeddings")
}

func (s *Store) HandleFor(tenantId string) (commonModels.StoreHandle, error) {
	return vectorDB.HandleFor(s.namespace, tenantId)
}

func (s *Store) Provision(ctx context.Context, tenantId string) (commonModels.StoreHandle, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return h, err
	}
	_, err = s.db.GetOrCreateCollection(h.Qualified(), map[string]string{metaDimension: strconv.Itoa(s.dimension)}, noEmbedding)
	if err != nil {
		return h, vectorDB.IOFailure(err, "create collection", h)
	}
	return h, nil
}

func (s *Store) Exists(ctx context.Context, tenantId string) (bool, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return false, err
	}
	return s.db.GetCollection(h.Qualified(), noEmbedding) != nil, nil
}

func (s *Store) Drop(ctx context.Context, tenantId string) error {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return err
	}
	if err = s.db.DeleteCollection(h.Qualified()); err != nil {
		return vectorDB.IOFailure(err, "drop collection", h)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var tenants []string
	for name := range s.db.ListCollections() {
		if tenant, ok := vectorDB.TenantFromQualified(s.namespace, name); ok {
			tenants = append(tenants, tenant)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (s *Store) Stats(ctx context.Context, tenantId string) (commonModels.StoreStats, error) {
	h, c, err := s.collection(tenantId)
	if err != nil {
		return commonModels.StoreStats{}, err
	}
	results, err := s.all(ctx, c, nil)
	if err != nil {
		return commonModels.StoreStats{}, vectorDB.IOFailure(err, "stats", h)
	}
	docs := make(map[string]struct{})
	for _, r := range results {
		docs[r.Metadata[commonModels.MetaDocumentId]] = struct{}{}
	}
	return commonModels.StoreStats{
		TenantId:       tenantId,
		Table:          h.Qualified(),
		TotalPassages:  int64(c.Count()),
		TotalDocuments: int64(len(docs)),
		SizeBytes:      -1,
	}, nil
}

func (s *Store) InsertMany(ctx context.Context, tenantId, documentId string, passages []commonModels.PassageInput) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, c, err := s.collection(tenantId)
	if err != nil {
		return 0, err
	}

	inserted := 0
	var rejected vectorDB.Rejections
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, p := range passages {
		if err := vectorDB.ValidatePassage(i, p, s.dimension); err != nil {
			rejected.Add(i, err)
			continue
		}
		if isZero(p.Embedding) {
			rejected.Add(i, errors_i.New(errors_i.CodeValidationInvalidInput, "zero vector has no direction",
				errors_i.Field("position", i)))
			continue
		}

		chunkIndex := vectorDB.ChunkIndex(i, p)
		meta, err := encodeMetadata(documentId, chunkIndex, p.Metadata, now)
		if err != nil {
			rejected.Add(i, errors_i.Wrap(err, errors_i.CodeValidationInvalidInput, "passage metadata not storable",
				errors_i.Field("position", i)))
			continue
		}

		err = c.AddDocument(ctx, chromem.Document{
			ID:        utils.PointIdFor(tenantId, documentId, chunkIndex),
			Metadata:  meta,
			Embedding: append([]float32(nil), p.Embedding...),
			Content:   p.ChunkText,
		})
		if err != nil {
			rejected.Add(i, vectorDB.IOFailure(err, "add document", h))
			continue
		}
		inserted++
	}
	return inserted, rejected.Err()
}

func (s *Store) Search(ctx context.Context, tenantId string, query []float32, limit int, documentId string) ([]commonModels.SearchHit, error) {
	if err := vectorDB.ValidateSearch(query, limit, s.dimension); err != nil {
		return nil, err
	}
	h, c, err := s.collection(tenantId)
	if err != nil {
		return nil, err
	}
	total := c.Count()
	if total == 0 || isZero(query) {
		return []commonModels.SearchHit{}, nil
	}

	var where map[string]string
	if documentId != "" {
		where = map[string]string{commonModels.MetaDocumentId: documentId}
	}
	results, err := c.QueryEmbedding(ctx, query, min(limit, total), where, nil)
	if err != nil {
		return nil, vectorDB.IOFailure(err, "query", h)
	}

	hits := make([]commonModels.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, commonModels.SearchHit{
			DocumentId: r.Metadata[commonModels.MetaDocumentId],
			ChunkText:  r.Content,
			Metadata:   decodeMetadata(r.Metadata),
			Distance:   1 - float64(r.Similarity),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, c, err := s.collection(tenantId)
	if errors_i.IsNotProvisioned(err) {
		s.logger.FromContext(ctx).Warn("delete on missing tenant store", "collection", h.Qualified(), "documentId", documentId)
		return 0, nil
	} else if err != nil {
		return 0, err
	}

	where := map[string]string{commonModels.MetaDocumentId: documentId}
	matches, err := s.all(ctx, c, where)
	if err != nil {
		return 0, vectorDB.IOFailure(err, "count passages", h)
	}
	if len(matches) == 0 {
		return 0, nil
	}
	if err = c.Delete(ctx, where, nil); err != nil {
		return 0, vectorDB.IOFailure(err, "delete passages", h)
	}
	return len(matches), nil
}

func (s *Store) CountByDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, c, err := s.collection(tenantId)
	if err != nil {
		return 0, err
	}
	matches, err := s.all(ctx, c, map[string]string{commonModels.MetaDocumentId: documentId})
	if err != nil {
		return 0, vectorDB.IOFailure(err, "count passages", h)
	}
	return len(matches), nil
}

func (s *Store) collection(tenantId string) (commonModels.StoreHandle, *chromem.Collection, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return h, nil, err
	}
	c := s.db.GetCollection(h.Qualified(), noEmbedding)
	if c == nil {
		return h, nil, vectorDB.NotProvisioned(h)
	}
	return h, c, nil
}

// all returns every document matching where. chromem has no scan, so this is
// a query with a unit vector sized to the whole collection.
func (s *Store) all(ctx context.Context, c *chromem.Collection, where map[string]string) ([]chromem.Result, error) {
	total := c.Count()
	if total == 0 {
		return nil, nil
	}
	anchor := make([]float32, s.dimension)
	anchor[0] = 1
	return c.QueryEmbedding(ctx, anchor, total, where, nil)
}

func encodeMetadata(documentId string, chunkIndex int, meta map[string]any, createdAt string) (map[string]string, error) {
	extra := vectorDB.PassageMetadata(chunkIndex, meta)
	delete(extra, commonModels.MetaChunkIndex)

	out := map[string]string{
		commonModels.MetaDocumentId: documentId,
		commonModels.MetaChunkIndex: strconv.Itoa(chunkIndex),
		metaCreatedAt:               createdAt,
	}
	if len(extra) > 0 {
		raw, err := json.Marshal(extra)
		if err != nil {
			return nil, err
		}
		out[metaExtra] = string(raw)
	}
	return out, nil
}

func decodeMetadata(meta map[string]string) map[string]any {
	out := map[string]any{}
	if raw, ok := meta[metaExtra]; ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &out)
	}
	if idx, err := strconv.Atoi(meta[commonModels.MetaChunkIndex]); err == nil {
		out[commonModels.MetaChunkIndex] = idx
	}
	return out
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
