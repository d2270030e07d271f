package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Env        string           `koanf:"env"`
	Log        LogConfig        `koanf:"log"`
	Server     ServerConfig     `koanf:"server"`
	Redis      RedisConfig      `koanf:"redis"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Vector     VectorConfig     `koanf:"vector"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Worker     WorkerConfig     `koanf:"worker"`
	HTTPClient HTTPClientConfig `koanf:"http_client"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text | json
}

type ServerConfig struct {
	ListenAddr         string        `koanf:"listen_addr"`
	ReadTimeout        time.Duration `koanf:"read_timeout"`
	WriteTimeout       time.Duration `koanf:"write_timeout"`
	IdleTimeout        time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
	AuthToken          string        `koanf:"auth_token"`
	RateLimitPerSecond float64       `koanf:"rate_limit_per_second"`
	RateLimitBurst     int           `koanf:"rate_limit_burst"`
}

type RedisConfig struct {
	Disabled   bool   `koanf:"disabled"`
	Addr       string `koanf:"addr"`
	Password   string `koanf:"password"`
	DocumentDB int    `koanf:"document_db"`
	QueueDB    int    `koanf:"queue_db"`
	QueueKey   string `koanf:"queue_key"`
}

type EmbeddingConfig struct {
	Provider          string        `koanf:"provider"`
	Model             string        `koanf:"model"`
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	Dimension         int           `koanf:"dimension"`
	MaxRetries        int           `koanf:"max_retries"`
	RetryBaseDelay    time.Duration `koanf:"retry_base_delay"`
	RetryMaxDelay     time.Duration `koanf:"retry_max_delay"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	Timeout           time.Duration `koanf:"timeout"`
}

type VectorConfig struct {
	Backend   string         `koanf:"backend"`
	Namespace string         `koanf:"namespace"`
	Qdrant    QdrantConfig   `koanf:"qdrant"`
	Postgres  PostgresConfig `koanf:"postgres"`
	Chromem   ChromemConfig  `koanf:"chromem"`
}

type QdrantConfig struct {
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	UseTLS          bool   `koanf:"use_tls"`
	APIKey          string `koanf:"api_key"`
	PoolSize        uint   `koanf:"pool_size"`
	HnswM           uint64 `koanf:"hnsw_m"`
	HnswEfConstruct uint64 `koanf:"hnsw_ef_construct"`
	StatsFacetLimit uint64 `koanf:"stats_facet_limit"`
}

type PostgresConfig struct {
	DSN          string `koanf:"dsn"`
	MaxConns     int32  `koanf:"max_conns"`
	IvfflatLists int    `koanf:"ivfflat_lists"`
	// Probes is ivfflat.probes for searches; more probes trade speed for recall.
	Probes int `koanf:"probes"`
}

type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

type IngestConfig struct {
	ChunkSize        int           `koanf:"chunk_size"`
	ChunkOverlap     int           `koanf:"chunk_overlap"`
	EmbedConcurrency int           `koanf:"embed_concurrency"`
	DocumentTimeout  time.Duration `koanf:"document_timeout"`
	TempDir          string        `koanf:"temp_dir"`
	// Tenants holds per-tenant chunking overrides keyed by tenant id.
	Tenants map[string]TenantIngestConfig `koanf:"tenants"`
}

type TenantIngestConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

type WorkerConfig struct {
	MinWorkers  int64         `koanf:"min_workers"`
	MaxWorkers  int64         `koanf:"max_workers"`
	IdleTimeout time.Duration `koanf:"idle_timeout"`
	PollTimeout time.Duration `koanf:"poll_timeout"`
}

type HTTPClientConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"`
}

// Load reads path (if non-empty and present), then TENANTRAG_* env overrides.
// Nested keys use a double underscore: TENANTRAG_EMBEDDING__API_KEY -> embedding.api_key.
// Both are decoded over the defaults, so a key that is present wins even when
// its value is zero (chunk_overlap: 0, max_retries: 0).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := baseDefaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDerived(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	if s == "" || s == "CONFIG" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Default returns a config populated only with defaults.
func Default() *Config {
	cfg := baseDefaults()
	applyDerived(cfg)
	return cfg
}

func baseDefaults() *Config {
	env := "dev"
	if IS_PROD {
		env = "prod"
	}
	return &Config{
		Env: env,
		Server: ServerConfig{
			ListenAddr:         ServerListenAddr,
			ReadTimeout:        ReadTimeout,
			WriteTimeout:       WriteTimeout,
			IdleTimeout:        IdleTimeout,
			ShutdownTimeout:    ShutdownContextTimeout,
			RateLimitPerSecond: RATE_LIMIT_PER_SECOND,
			RateLimitBurst:     BURST_RATE_LIMIT_PER_SECOND,
		},
		Redis: RedisConfig{
			Addr:       RedisAddr,
			DocumentDB: RedisDocumentStore,
			QueueDB:    RedisJobQueue,
			QueueKey:   RedisQueueKey,
		},
		Embedding: EmbeddingConfig{
			Provider:          DefaultEmbeddingProvider,
			Dimension:         EmbeddingOutputDimensionality,
			MaxRetries:        EmbeddingMaxRetries,
			RetryBaseDelay:    EmbeddingRetryBaseDelay,
			RetryMaxDelay:     EmbeddingRetryMaxDelay,
			RequestsPerSecond: EmbeddingRequestsPerSecond,
			Burst:             EmbeddingBurst,
			Timeout:           EmbeddingRequestTimeout,
		},
		Vector: VectorConfig{
			Backend:   DefaultVectorBackend,
			Namespace: VectorNamespace,
			Qdrant: QdrantConfig{
				Host:            QdrantHost,
				Port:            QdrantGrpcPort,
				UseTLS:          QdrantUseTLS,
				PoolSize:        QdrantPoolSize,
				HnswM:           QdrantHnswM,
				HnswEfConstruct: QdrantHnswEfConstruct,
				StatsFacetLimit: QdrantStatsFacetLimit,
			},
			Postgres: PostgresConfig{
				MaxConns:     PostgresMaxConns,
				IvfflatLists: PostgresIvfflatLists,
				Probes:       PostgresIvfflatProbes,
			},
		},
		Ingest: IngestConfig{
			ChunkSize:        DefaultChunkSize,
			ChunkOverlap:     DefaultChunkOverlap,
			EmbedConcurrency: EmbedConcurrency,
			DocumentTimeout:  DocumentTimeout,
			TempDir:          TempDir,
		},
		Worker: WorkerConfig{
			MinWorkers:  MinWorkerCount,
			MaxWorkers:  MaxWorkerCount,
			IdleTimeout: IdleWorkerTimeout,
			PollTimeout: QueuePollTimeout,
		},
		HTTPClient: HTTPClientConfig{
			MaxIdleConns:        MaxIdleConns,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     IdleConnTimeout,
		},
	}
}

// applyDerived fills values whose default depends on other settings.
func applyDerived(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
		if cfg.IsProd() {
			cfg.Log.Level = LOG_LEVEL_PROD.String()
		}
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
		if cfg.IsProd() {
			cfg.Log.Format = "json"
		}
	}

	e := &cfg.Embedding
	if e.Model == "" {
		switch e.Provider {
		case EmbeddingProviderGoogle:
			e.Model = GoogleEmbeddingModel
		case EmbeddingProviderOllama:
			e.Model = OllamaEmbeddingModel
		default:
			e.Model = OpenAIEmbeddingModel
		}
	}
	if e.BaseURL == "" && e.Provider == EmbeddingProviderOllama {
		e.BaseURL = OllamaServerURL
	}
}

func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case EmbeddingProviderOpenAI, EmbeddingProviderGoogle, EmbeddingProviderOllama:
	default:
		return fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be > 0, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding.max_retries must be >= 0, got %d", c.Embedding.MaxRetries)
	}

	switch c.Vector.Backend {
	case VectorBackendQdrant, VectorBackendChromem:
	case VectorBackendPostgres:
		if c.Vector.Postgres.DSN == "" {
			return fmt.Errorf("vector.postgres.dsn is required for the %s backend", VectorBackendPostgres)
		}
		if c.Vector.Postgres.IvfflatLists <= 0 {
			return fmt.Errorf("vector.postgres.ivfflat_lists must be > 0")
		}
		if c.Vector.Postgres.Probes <= 0 || c.Vector.Postgres.Probes > c.Vector.Postgres.IvfflatLists {
			return fmt.Errorf("vector.postgres.probes must be in [1, ivfflat_lists], got %d", c.Vector.Postgres.Probes)
		}
	default:
		return fmt.Errorf("vector.backend: unknown backend %q", c.Vector.Backend)
	}
	if c.Vector.Namespace == "" {
		return fmt.Errorf("vector.namespace is required")
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	for tenant, t := range c.Ingest.Tenants {
		if t.ChunkSize < 0 || t.ChunkOverlap < 0 || (t.ChunkSize > 0 && t.ChunkOverlap >= t.ChunkSize) {
			return fmt.Errorf("ingest.tenants.%s: invalid chunking %d/%d", tenant, t.ChunkSize, t.ChunkOverlap)
		}
	}
	if c.Ingest.EmbedConcurrency <= 0 {
		return fmt.Errorf("ingest.embed_concurrency must be > 0")
	}

	if c.Worker.MinWorkers < 1 || c.Worker.MaxWorkers < c.Worker.MinWorkers {
		return fmt.Errorf("worker: need 1 <= min_workers <= max_workers, got %d/%d", c.Worker.MinWorkers, c.Worker.MaxWorkers)
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
