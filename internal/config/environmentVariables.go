package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"
	TENANT_ID_KEY  = "tenantId"

	//config file + env
	ConfigFileEnv = "TENANTRAG_CONFIG"
	EnvPrefix     = "TENANTRAG_"

	//ops server rate limit (per ip)
	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//embeddings
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderGoogle = "google"
	EmbeddingProviderOllama = "ollama"

	DefaultEmbeddingProvider              = EmbeddingProviderOpenAI
	OpenAIEmbeddingModel                  = "text-embedding-3-small"
	GoogleEmbeddingModel                  = "gemini-embedding-001"
	OllamaEmbeddingModel                  = "nomic-embed-text"
	OllamaServerURL                       = "http://127.0.0.1:11434"
	EmbeddingOutputDimensionality         = 1536
	EmbeddingMaxRetries                   = 3
	EmbeddingRetryBaseDelay               = 500 * time.Millisecond
	EmbeddingRetryMaxDelay                = 8 * time.Second
	EmbeddingRequestsPerSecond    float64 = 20
	EmbeddingBurst                        = 10
	EmbeddingRequestTimeout               = 30 * time.Second

	//chunking, defaults match the catalog defaults
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	//ingestion
	EmbedConcurrency = 8
	DocumentTimeout  = 5 * time.Minute
	TempDir          = "temporary_data"
	PDFPageTimeout   = 10 * time.Second
	//past document_timeout, for in-flight embedding calls and passage cleanup
	StaleProcessingMargin = 5 * time.Minute

	//retrieval
	DefaultRetrieveLimit = 5
	MaxRetrieveLimit     = 100

	//vectorDB
	VectorBackendQdrant   = "qdrant"
	VectorBackendPostgres = "pgvector"
	VectorBackendChromem  = "chromem"

	DefaultVectorBackend  = VectorBackendQdrant
	VectorNamespace       = "client_vectors"
	QdrantHost            = "127.0.0.1"
	QdrantGrpcPort        = 6334
	QdrantUseTLS          = false //set for https
	QdrantPoolSize        = 1     //2-5 is preferred for prod according to documentation
	QdrantHnswM           = 16    //qdrant default
	QdrantHnswEfConstruct = 100   //qdrant default
	QdrantStatsFacetLimit = 10000 //distinct documents counted by stats
	PostgresMaxConns      = 10
	PostgresIvfflatLists  = 100 //rows/1000 up to 1M rows is the pgvector rule of thumb
	PostgresIvfflatProbes = 10  //sqrt(lists) per the pgvector docs
	VectorConnectTimeout  = 10 * time.Second

	//workers
	MaxWorkerCount    int64 = 10
	MinWorkerCount    int64 = 1
	IdleWorkerTimeout       = 1 * time.Minute
	QueuePollTimeout        = 5 * time.Second
	BufferLimit             = 100

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 30 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//ops server listening port
	ServerListenAddr = ":3000"

	//pooled transport for embedding providers
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisDocumentStore = 0
	RedisJobQueue      = 1
	RedisQueueKey      = "ingest:jobs"
	RedisDocumentTTL   = 0 //documents never expire
)
