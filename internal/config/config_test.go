package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultVectorBackend, cfg.Vector.Backend)
	assert.Equal(t, VectorNamespace, cfg.Vector.Namespace)
	assert.Equal(t, DefaultChunkSize, cfg.Ingest.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, OpenAIEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, EmbeddingOutputDimensionality, cfg.Embedding.Dimension)
	assert.Equal(t, uint64(QdrantHnswM), cfg.Vector.Qdrant.HnswM)
	assert.Equal(t, PostgresIvfflatLists, cfg.Vector.Postgres.IvfflatLists)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
vector:
  backend: chromem
  chromem:
    path: ""
embedding:
  provider: google
  dimension: 768
ingest:
  chunk_size: 500
  chunk_overlap: 50
  document_timeout: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("TENANTRAG_INGEST__CHUNK_OVERLAP", "100")
	t.Setenv("TENANTRAG_EMBEDDING__API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, VectorBackendChromem, cfg.Vector.Backend)
	assert.Equal(t, EmbeddingProviderGoogle, cfg.Embedding.Provider)
	assert.Equal(t, GoogleEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, "secret", cfg.Embedding.APIKey)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 100, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 90*time.Second, cfg.Ingest.DocumentTimeout)
}

func TestLoad_ExplicitZerosSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
ingest:
  chunk_size: 500
  chunk_overlap: 0
embedding:
  max_retries: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 0, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 0, cfg.Embedding.MaxRetries)
	// keys left out still get defaults
	assert.Equal(t, EmbeddingRetryBaseDelay, cfg.Embedding.RetryBaseDelay)
	assert.Equal(t, EmbedConcurrency, cfg.Ingest.EmbedConcurrency)
}

func TestLoad_EnvZeroOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis:\n  queue_db: 4\n"), 0o600))

	t.Setenv("TENANTRAG_REDIS__QUEUE_DB", "0")
	t.Setenv("TENANTRAG_EMBEDDING__MAX_RETRIES", "0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Redis.QueueDB)
	assert.Equal(t, 0, cfg.Embedding.MaxRetries)
	assert.Equal(t, RedisDocumentStore, cfg.Redis.DocumentDB)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, true},
		{"unknown backend", func(c *Config) { c.Vector.Backend = "milvus" }, true},
		{"pgvector without dsn", func(c *Config) { c.Vector.Backend = VectorBackendPostgres }, true},
		{"pgvector with dsn", func(c *Config) {
			c.Vector.Backend = VectorBackendPostgres
			c.Vector.Postgres.DSN = "postgres://localhost/db"
		}, false},
		{"pgvector probes above lists", func(c *Config) {
			c.Vector.Backend = VectorBackendPostgres
			c.Vector.Postgres.DSN = "postgres://localhost/db"
			c.Vector.Postgres.Probes = c.Vector.Postgres.IvfflatLists + 1
		}, true},
		{"zero overlap", func(c *Config) { c.Ingest.ChunkOverlap = 0 }, false},
		{"overlap equals size", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }, true},
		{"negative overlap", func(c *Config) { c.Ingest.ChunkOverlap = -1 }, true},
		{"workers inverted", func(c *Config) { c.Worker.MaxWorkers = 0; c.Worker.MinWorkers = 2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "vector.qdrant.host", envKey("TENANTRAG_VECTOR__QDRANT__HOST"))
	assert.Equal(t, "embedding.api_key", envKey("TENANTRAG_EMBEDDING__API_KEY"))
	assert.Equal(t, "", envKey("TENANTRAG_CONFIG"))
}
