package store

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
)

// InMemoryJobQueue is the fallback used when redis is offline. Jobs do not survive restarts.
type InMemoryJobQueue struct {
	jobs chan jobModel.IngestJob
}

func InitInMemoryJobQueue(buffer int) *InMemoryJobQueue {
	return &InMemoryJobQueue{jobs: make(chan jobModel.IngestJob, buffer)}
}

func (q *InMemoryJobQueue) Enqueue(ctx context.Context, job jobModel.IngestJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue job %s: %w", job.Id, ctx.Err())
	}
}

func (q *InMemoryJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (jobModel.IngestJob, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return job, true, nil
	case <-timer.C:
		return jobModel.IngestJob{}, false, nil
	case <-ctx.Done():
		return jobModel.IngestJob{}, false, ctx.Err()
	}
}

func (q *InMemoryJobQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.jobs)), nil
}
