package qdrantDB

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/metrics"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store keeps one qdrant collection per tenant, named "<namespace>__<table>".
type Store struct {
	client    *qdrant.Client
	cfg       config.QdrantConfig
	namespace string
	dimension uint64
	logger    *logger_i.Logger
}

var _ vectorDB.Backend = (*Store)(nil)

func Open(ctx context.Context, cfg config.QdrantConfig, namespace string, dimension int) (*Store, error) {
	logger := logger_i.NewLogger("Qdrant")
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		UseTLS:   cfg.UseTLS,
		APIKey:   cfg.APIKey,
		PoolSize: cfg.PoolSize,
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	s := &Store{
		client:    client,
		cfg:       cfg,
		namespace: namespace,
		dimension: uint64(dimension),
		logger:    logger,
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.VectorConnectTimeout)
	defer cancel()
	if err = s.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("Qdrant connected", "host", cfg.Host, "port", cfg.Port)
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.logger.Info("Shutting down Qdrant")
	return s.client.Close()
}

func (s *Store) HandleFor(tenantId string) (commonModels.StoreHandle, error) {
	return vectorDB.HandleFor(s.namespace, tenantId)
}

func (s *Store) Provision(ctx context.Context, tenantId string) (commonModels.StoreHandle, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return h, err
	}
	log := s.logger.FromContext(ctx).With("collection", h.Qualified())
	name := h.Qualified()

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return h, vectorDB.IOFailure(err, "collection exists", h)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dimension,
				Distance: qdrant.Distance_Cosine,
			}),
			HnswConfig: &qdrant.HnswConfigDiff{
				M:           qdrant.PtrOf(s.cfg.HnswM),
				EfConstruct: qdrant.PtrOf(s.cfg.HnswEfConstruct),
			},
		})
		if err != nil && !isAlreadyExists(err) {
			log.Error("could not create collection", "error", err)
			return h, vectorDB.IOFailure(err, "create collection", h)
		}
		if err == nil {
			log.Info("collection created")
		}
	}

	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{commonModels.MetaDocumentId, qdrant.FieldType_FieldTypeKeyword},
		{commonModels.MetaChunkIndex, qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
		})
		if err != nil && !isAlreadyExists(err) {
			return h, vectorDB.IOFailure(err, "create payload index "+idx.field, h)
		}
	}
	return h, nil
}

func (s *Store) Exists(ctx context.Context, tenantId string) (bool, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return false, err
	}
	exists, err := s.client.CollectionExists(ctx, h.Qualified())
	if err != nil {
		return false, vectorDB.IOFailure(err, "collection exists", h)
	}
	return exists, nil
}

func (s *Store) Drop(ctx context.Context, tenantId string) error {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return err
	}
	if err = s.client.DeleteCollection(ctx, h.Qualified()); err != nil && !isNotFound(err) {
		return vectorDB.IOFailure(err, "drop collection", h)
	}
	s.logger.FromContext(ctx).Warn("tenant collection dropped", "collection", h.Qualified())
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "list collections")
	}
	var tenants []string
	for _, name := range names {
		if tenant, ok := vectorDB.TenantFromQualified(s.namespace, name); ok {
			tenants = append(tenants, tenant)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (s *Store) Stats(ctx context.Context, tenantId string) (commonModels.StoreStats, error) {
	h, err := s.requireCollection(ctx, tenantId)
	if err != nil {
		return commonModels.StoreStats{}, err
	}

	total, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: h.Qualified(),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return commonModels.StoreStats{}, vectorDB.IOFailure(err, "count points", h)
	}

	hits, err := s.client.Facet(ctx, &qdrant.FacetCounts{
		CollectionName: h.Qualified(),
		Key:            commonModels.MetaDocumentId,
		Limit:          qdrant.PtrOf(s.cfg.StatsFacetLimit),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return commonModels.StoreStats{}, vectorDB.IOFailure(err, "facet documents", h)
	}

	return commonModels.StoreStats{
		TenantId:       tenantId,
		Table:          h.Qualified(),
		TotalPassages:  int64(total),
		TotalDocuments: int64(len(hits)),
		SizeBytes:      -1,
	}, nil
}

func (s *Store) InsertMany(ctx context.Context, tenantId, documentId string, passages []commonModels.PassageInput) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, err := s.requireCollection(ctx, tenantId)
	if err != nil {
		return 0, err
	}
	if len(passages) == 0 {
		return 0, nil
	}

	var (
		points    []*qdrant.PointStruct
		positions []int
		rejected  vectorDB.Rejections
	)
	now := time.Now().UTC()
	for i, p := range passages {
		if err := vectorDB.ValidatePassage(i, p, int(s.dimension)); err != nil {
			rejected.Add(i, err)
			continue
		}
		point, err := toPoint(tenantId, documentId, vectorDB.ChunkIndex(i, p), p, now)
		if err != nil {
			rejected.Add(i, errors_i.Wrap(err, errors_i.CodeValidationInvalidInput, "passage metadata not storable",
				errors_i.Field("position", i)))
			continue
		}
		points = append(points, point)
		positions = append(positions, i)
	}

	inserted := 0
	if len(points) > 0 {
		start := time.Now()
		_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: h.Qualified(),
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		metrics.CaptureExecutionMetrics("qdrant_upsert", time.Since(start))
		if err == nil {
			inserted = len(points)
		} else {
			// fall back to one point per call so a single bad point only costs itself
			s.logger.FromContext(ctx).Warn("batch upsert failed, retrying per point", "error", err, "points", len(points))
			for k, point := range points {
				if _, perr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
					CollectionName: h.Qualified(),
					Points:         []*qdrant.PointStruct{point},
					Wait:           qdrant.PtrOf(true),
				}); perr != nil {
					rejected.Add(positions[k], vectorDB.IOFailure(perr, "upsert point", h))
					continue
				}
				inserted++
			}
		}
	}
	return inserted, rejected.Err()
}

func (s *Store) Search(ctx context.Context, tenantId string, query []float32, limit int, documentId string) ([]commonModels.SearchHit, error) {
	if err := vectorDB.ValidateSearch(query, limit, int(s.dimension)); err != nil {
		return nil, err
	}
	h, err := s.requireCollection(ctx, tenantId)
	if err != nil {
		return nil, err
	}

	req := &qdrant.QueryPoints{
		CollectionName: h.Qualified(),
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if documentId != "" {
		req.Filter = documentFilter(documentId)
	}

	start := time.Now()
	result, err := s.client.Query(ctx, req)
	metrics.CaptureExecutionMetrics("qdrant_query", time.Since(start))
	if err != nil {
		s.logger.FromContext(ctx).Error("Error querying Qdrant", "error", err)
		return nil, vectorDB.IOFailure(err, "query", h)
	}

	hits := make([]commonModels.SearchHit, 0, len(result))
	for _, point := range result {
		hits = append(hits, toHit(point))
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, err := s.requireCollection(ctx, tenantId)
	if errors_i.IsNotProvisioned(err) {
		s.logger.FromContext(ctx).Warn("delete on missing tenant store", "collection", h.Qualified(), "documentId", documentId)
		return 0, nil
	} else if err != nil {
		return 0, err
	}

	n, err := s.countDocument(ctx, h, documentId)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: h.Qualified(),
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentId)),
	})
	if err != nil {
		return 0, vectorDB.IOFailure(err, "delete points", h)
	}
	return n, nil
}

func (s *Store) CountByDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, err := s.requireCollection(ctx, tenantId)
	if err != nil {
		return 0, err
	}
	return s.countDocument(ctx, h, documentId)
}

func (s *Store) countDocument(ctx context.Context, h commonModels.StoreHandle, documentId string) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: h.Qualified(),
		Filter:         documentFilter(documentId),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, vectorDB.IOFailure(err, "count points", h)
	}
	return int(n), nil
}

func (s *Store) requireCollection(ctx context.Context, tenantId string) (commonModels.StoreHandle, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return h, err
	}
	exists, err := s.client.CollectionExists(ctx, h.Qualified())
	if err != nil {
		return h, vectorDB.IOFailure(err, "collection exists", h)
	}
	if !exists {
		return h, vectorDB.NotProvisioned(h)
	}
	return h, nil
}

func documentFilter(documentId string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(commonModels.MetaDocumentId, documentId)},
	}
}

func isAlreadyExists(err error) bool {
	if st, ok := status.FromError(err); ok && st.Code() == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func isNotFound(err error) bool {
	if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "doesn't exist")
}
