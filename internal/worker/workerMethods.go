package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/akolanti/TenantRAG/internal/metrics"
)

// executeJob runs job to completion even when the pool is stopping.
func (p *Pool) executeJob(ctx context.Context, job jobModel.IngestJob) {
	start := time.Now()
	jobCtx := context.WithValue(context.WithoutCancel(ctx), config.TRACE_ID_KEY, job.TraceId)
	log := p.logger.FromContext(jobCtx)
	log.Debug("Processing job", "jobId", job.Id, "documentId", job.DocumentId)

	job = p.processor.ProcessJob(jobCtx, job)

	if job.Status == jobModel.JobStatusError {
		log.Warn("Job failed", "jobId", job.Id, "code", job.Error.Code, "retry", job.Error.Retry, "elapsed", time.Since(start))
		return
	}
	log.Info("Job finished", "jobId", job.Id, "elapsed", time.Since(start))
}

// signalBacklog asks the dispatcher for another worker while jobs are waiting.
func (p *Pool) signalBacklog(ctx context.Context) {
	n, err := p.queue.Len(ctx)
	if err != nil {
		return
	}
	metrics.SetJobsInQueue(n)
	if n == 0 || p.WorkerCount() >= p.settings.MaxWorkers {
		return
	}
	select {
	case p.dispatcherChannel <- true:
	default:
	}
}

func (p *Pool) removeWorker(reason string) {
	atomic.AddInt64(&p.currentWorkerCount, -1)
	p.workerDone(reason)
}

// workerDone releases a worker whose count was already decremented.
func (p *Pool) workerDone(reason string) {
	p.workerWaitGroup.Done()
	metrics.DecrementActiveWorkerCount()
	p.logger.Info("Removed worker", "reason", reason, "workerCount", p.WorkerCount())
}
