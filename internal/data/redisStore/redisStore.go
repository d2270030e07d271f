package redisStore

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	Type   int
	logger *logger_i.Logger
}

// Open connects to one logical redis DB and pings it. The caller owns Close.
func Open(ctx context.Context, cfg config.RedisConfig, dbType int) (*Store, error) {
	newClient := redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	logger := logger_i.NewLogger(fmt.Sprintf("Redis Store: %d", dbType))

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := newClient.Ping(pingCtx).Err(); err != nil {
		_ = newClient.Close()
		logger.Error("Redis is offline", "addr", cfg.Addr, "error", err)
		return nil, fmt.Errorf("redis ping %s db %d: %w", cfg.Addr, dbType, err)
	}

	logger.Info("Redis store init successfully", "addr", cfg.Addr)
	return &Store{client: newClient, Type: dbType, logger: logger}, nil
}

func (s *Store) Close() error {
	s.logger.Info("Closing Redis Store")
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// NewTestStore wraps an existing client, used with miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		logger: logger_i.NewLogger("Redis Store: test"),
	}
}
