package pgvectorDB

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/akolanti/TenantRAG/internal/adapter/utils"
	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/internal/metrics"
	"github.com/akolanti/TenantRAG/internal/rag/vectorDB"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Store keeps one table per tenant inside a shared schema.
type Store struct {
	pool      *pgxpool.Pool
	namespace string
	dimension int
	lists     int
	probes    int
	logger    *logger_i.Logger
}

var _ vectorDB.Backend = (*Store)(nil)

func Open(ctx context.Context, cfg config.PostgresConfig, namespace string, dimension int) (*Store, error) {
	logger := logger_i.NewLogger("pgvector")
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.VectorConnectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err = pool.Ping(connectCtx); err != nil {
		pool.Close()
		logger.Error("Postgres is offline", "error", err)
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	lists := cfg.IvfflatLists
	if lists <= 0 {
		lists = config.PostgresIvfflatLists
	}
	logger.Info("Postgres connected", "schema", namespace)
	return NewWithPool(pool, namespace, dimension, lists, cfg.Probes), nil
}

// NewWithPool wraps an existing pool. probes is clamped to [1, lists].
func NewWithPool(pool *pgxpool.Pool, namespace string, dimension, lists, probes int) *Store {
	return &Store{
		pool:      pool,
		namespace: namespace,
		dimension: dimension,
		lists:     lists,
		probes:    min(max(probes, 1), lists),
		logger:    logger_i.NewLogger("pgvector"),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.logger.Info("Closing Postgres pool")
	s.pool.Close()
	return nil
}

func (s *Store) HandleFor(tenantId string) (commonModels.StoreHandle, error) {
	return vectorDB.HandleFor(s.namespace, tenantId)
}

func (s *Store) Provision(ctx context.Context, tenantId string) (commonModels.StoreHandle, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return h, err
	}
	log := s.logger.FromContext(ctx).With("table", h.Table)

	for _, stmt := range provisionStatements(h, s.dimension, s.lists) {
		if _, err = s.pool.Exec(ctx, stmt); err != nil {
			if isConcurrentCreate(err) {
				log.Debug("object already created concurrently", "error", err)
				continue
			}
			log.Error("provision statement failed", "error", err)
			return h, vectorDB.IOFailure(err, "provision", h)
		}
	}
	log.Info("tenant table provisioned")
	return h, nil
}

func (s *Store) Exists(ctx context.Context, tenantId string) (bool, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.pool.QueryRow(ctx, existsSQL, h.Namespace, h.Table).Scan(&exists)
	if err != nil {
		return false, vectorDB.IOFailure(err, "table exists", h)
	}
	return exists, nil
}

func (s *Store) Drop(ctx context.Context, tenantId string) error {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return err
	}
	if _, err = s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+qualified(h)); err != nil {
		return vectorDB.IOFailure(err, "drop table", h)
	}
	s.logger.FromContext(ctx).Warn("tenant table dropped", "table", h.Table)
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listSQL, s.namespace)
	if err != nil {
		return nil, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "list tables")
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors_i.Wrap(err, errors_i.CodeStoreIOFailure, "list tables")
	}

	var tenants []string
	for _, table := range tables {
		if tenant, ok := vectorDB.TenantFromTable(table); ok {
			tenants = append(tenants, tenant)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (s *Store) Stats(ctx context.Context, tenantId string) (commonModels.StoreStats, error) {
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return commonModels.StoreStats{}, err
	}
	stats := commonModels.StoreStats{TenantId: tenantId, Table: h.Namespace + "." + h.Table}
	err = s.pool.QueryRow(ctx, fmt.Sprintf(statsSQL, qualified(h)), qualified(h)).
		Scan(&stats.TotalPassages, &stats.TotalDocuments, &stats.SizeBytes)
	if err != nil {
		return commonModels.StoreStats{}, s.storeError(err, "stats", h)
	}
	return stats, nil
}

func (s *Store) InsertMany(ctx context.Context, tenantId, documentId string, passages []commonModels.PassageInput) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf(insertSQL, qualified(h))
	inserted := 0
	var rejected vectorDB.Rejections
	start := time.Now()
	for i, p := range passages {
		if err := vectorDB.ValidatePassage(i, p, s.dimension); err != nil {
			rejected.Add(i, err)
			continue
		}
		chunkIndex := vectorDB.ChunkIndex(i, p)
		meta := vectorDB.PassageMetadata(chunkIndex, p.Metadata)

		_, err := s.pool.Exec(ctx, stmt,
			utils.PointIdFor(tenantId, documentId, chunkIndex),
			documentId,
			p.ChunkText,
			pgvector.NewVector(p.Embedding).String(),
			meta,
		)
		if err != nil {
			if isUndefinedTable(err) {
				// nothing else can succeed
				return inserted, vectorDB.NotProvisioned(h)
			}
			rejected.Add(i, vectorDB.IOFailure(err, "insert passage", h))
			continue
		}
		inserted++
	}
	metrics.CaptureExecutionMetrics("postgres_insert", time.Since(start))
	return inserted, rejected.Err()
}

func (s *Store) Search(ctx context.Context, tenantId string, query []float32, limit int, documentId string) ([]commonModels.SearchHit, error) {
	if err := vectorDB.ValidateSearch(query, limit, s.dimension); err != nil {
		return nil, err
	}
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return nil, err
	}

	vec := pgvector.NewVector(query).String()
	sql := fmt.Sprintf(searchSQL, qualified(h))
	args := []any{vec, limit}
	if documentId != "" {
		sql = fmt.Sprintf(searchByDocumentSQL, qualified(h))
		args = append(args, documentId)
	}

	var hits []commonModels.SearchHit
	start := time.Now()
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, probesStatement(s.probesFor(documentId))); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		hits, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (commonModels.SearchHit, error) {
			var hit commonModels.SearchHit
			err := row.Scan(&hit.DocumentId, &hit.ChunkText, &hit.Metadata, &hit.Distance)
			return hit, err
		})
		return err
	})
	metrics.CaptureExecutionMetrics("postgres_search", time.Since(start))
	if err != nil {
		return nil, s.storeError(err, "search", h)
	}
	for i := range hits {
		if idx, ok := vectorDB.MetadataInt(hits[i].Metadata, commonModels.MetaChunkIndex); ok {
			hits[i].Metadata[commonModels.MetaChunkIndex] = idx
		}
	}
	return hits, nil
}

// probesFor scans every list when filtering by document: the filter runs after
// the index picks its candidates, so a partial scan can return fewer than limit rows.
func (s *Store) probesFor(documentId string) int {
	if documentId != "" {
		return s.lists
	}
	return s.probes
}

func (s *Store) DeleteByDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(deleteSQL, qualified(h)), documentId)
	if err != nil {
		if isUndefinedTable(err) {
			s.logger.FromContext(ctx).Warn("delete on missing tenant store", "table", h.Table, "documentId", documentId)
			return 0, nil
		}
		return 0, vectorDB.IOFailure(err, "delete passages", h)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CountByDocument(ctx context.Context, tenantId, documentId string) (int, error) {
	if err := vectorDB.ValidateDocumentId(documentId); err != nil {
		return 0, err
	}
	h, err := s.HandleFor(tenantId)
	if err != nil {
		return 0, err
	}
	var n int
	if err = s.pool.QueryRow(ctx, fmt.Sprintf(countSQL, qualified(h)), documentId).Scan(&n); err != nil {
		return 0, s.storeError(err, "count passages", h)
	}
	return n, nil
}

func (s *Store) storeError(err error, op string, h commonModels.StoreHandle) error {
	if isUndefinedTable(err) {
		return vectorDB.NotProvisioned(h)
	}
	return vectorDB.IOFailure(err, op, h)
}

func qualified(h commonModels.StoreHandle) string {
	return pgx.Identifier{h.Namespace, h.Table}.Sanitize()
}

// SQLSTATEs raised when two provisioners race on the same object.
var concurrentCreateCodes = map[string]bool{
	"42P07": true, // duplicate_table
	"42P06": true, // duplicate_schema
	"23505": true, // unique_violation on pg_type / pg_namespace
	"42710": true, // duplicate_object
}

func isConcurrentCreate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && concurrentCreateCodes[pgErr.Code]
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42P01" || pgErr.Code == "3F000"
}
