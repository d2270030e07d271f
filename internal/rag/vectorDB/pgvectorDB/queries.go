package pgvectorDB

import (
	"fmt"
	"hash/fnv"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/jackc/pgx/v5"
)

const (
	existsSQL = `SELECT EXISTS (
	SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`

	listSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_name LIKE 'client\_%\_chunks' ORDER BY table_name`

	statsSQL = `SELECT count(*), count(DISTINCT document_id), pg_total_relation_size($1::regclass) FROM %s`

	insertSQL = `INSERT INTO %s (id, document_id, chunk_text, embedding, metadata)
VALUES ($1, $2, $3, $4::text::vector, $5)
ON CONFLICT (id) DO UPDATE SET chunk_text = EXCLUDED.chunk_text, embedding = EXCLUDED.embedding,
	metadata = EXCLUDED.metadata, updated_at = now()`

	searchSQL = `SELECT document_id, chunk_text, metadata, embedding <=> $1::text::vector AS distance
FROM %s ORDER BY distance LIMIT $2`

	searchByDocumentSQL = `SELECT document_id, chunk_text, metadata, embedding <=> $1::text::vector AS distance
FROM %s WHERE document_id = $3 ORDER BY distance LIMIT $2`

	deleteSQL = `DELETE FROM %s WHERE document_id = $1`

	countSQL = `SELECT count(*) FROM %s WHERE document_id = $1`
)

// provisionStatements are each idempotent on their own.
func provisionStatements(h commonModels.StoreHandle, dimension, lists int) []string {
	schema := pgx.Identifier{h.Namespace}.Sanitize()
	table := qualified(h)
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE SCHEMA IF NOT EXISTS ` + schema,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	document_id text NOT NULL,
	chunk_text text NOT NULL,
	embedding vector(%d) NOT NULL,
	metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
)`, table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
			indexName(h, "emb"), table, lists),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id)`, indexName(h, "doc"), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (((metadata->>'%s')::int))`,
			indexName(h, "idx"), table, commonModels.MetaChunkIndex),
	}
}

// probesStatement is scoped to the search transaction so pooled connections keep their defaults.
func probesStatement(probes int) string {
	return fmt.Sprintf(`SET LOCAL ivfflat.probes = %d`, probes)
}

// indexName stays under the identifier limit however long the table name is.
func indexName(h commonModels.StoreHandle, suffix string) string {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(h.Table))
	return pgx.Identifier{fmt.Sprintf("ix_%x_%s", hash.Sum64(), suffix)}.Sanitize()
}
