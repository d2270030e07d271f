package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akolanti/TenantRAG/internal/data/redisStore"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

// RedisJobQueue is a FIFO list: LPUSH to enqueue, BRPOP to dequeue.
type RedisJobQueue struct {
	store  *redisStore.Store
	key    string
	logger *logger_i.Logger
}

func NewRedisJobQueue(store *redisStore.Store, key string) *RedisJobQueue {
	return &RedisJobQueue{
		store:  store,
		key:    key,
		logger: logger_i.NewLogger("JobQueue"),
	}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, job jobModel.IngestJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err = q.store.ListPush(ctx, q.key, data); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.Id, err)
	}
	q.logger.FromContext(ctx).Debug("job enqueued", "jobId", job.Id, "documentId", job.DocumentId)
	return nil
}

func (q *RedisJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (jobModel.IngestJob, bool, error) {
	var job jobModel.IngestJob
	val, ok, err := q.store.ListPopBlocking(ctx, q.key, timeout)
	if err != nil || !ok {
		return job, false, err
	}
	if err = json.Unmarshal([]byte(val), &job); err != nil {
		q.logger.Error("dropping undecodable job", "error", err)
		return job, false, fmt.Errorf("decode job: %w", err)
	}
	return job, true, nil
}

func (q *RedisJobQueue) Len(ctx context.Context) (int64, error) {
	return q.store.ListLen(ctx, q.key)
}
