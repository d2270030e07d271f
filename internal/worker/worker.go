package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/jobModel"
	"github.com/akolanti/TenantRAG/internal/metrics"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

// JobProcessor runs one queued ingest job. rag.Service satisfies it.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job jobModel.IngestJob) jobModel.IngestJob
}

// Pool is an elastic set of workers draining a JobQueue. It keeps MinWorkers
// alive, grows to MaxWorkers while the queue has a backlog, and retires workers
// that stayed idle for IdleTimeout.
type Pool struct {
	queue     jobModel.JobQueue
	processor JobProcessor
	settings  config.WorkerConfig

	dispatcherChannel  chan bool
	stopWorkerChannel  chan struct{}
	workerWaitGroup    sync.WaitGroup
	dispatcherDone     chan struct{}
	currentWorkerCount int64
	stopOnce           sync.Once
	cancel             context.CancelFunc
	logger             *logger_i.Logger
}

func NewPool(queue jobModel.JobQueue, processor JobProcessor, settings config.WorkerConfig) *Pool {
	if settings.MinWorkers < 1 {
		settings.MinWorkers = config.MinWorkerCount
	}
	if settings.MaxWorkers < settings.MinWorkers {
		settings.MaxWorkers = settings.MinWorkers
	}
	if settings.IdleTimeout <= 0 {
		settings.IdleTimeout = config.IdleWorkerTimeout
	}
	if settings.PollTimeout <= 0 {
		settings.PollTimeout = config.QueuePollTimeout
	}
	return &Pool{
		queue:             queue,
		processor:         processor,
		settings:          settings,
		dispatcherChannel: make(chan bool, settings.MaxWorkers),
		stopWorkerChannel: make(chan struct{}),
		dispatcherDone:    make(chan struct{}),
		logger:            logger_i.NewLogger("WorkerPool"),
	}
}

// Start launches the dispatcher and the minimum number of workers.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.logger.Info("Initializing worker pool", "min", p.settings.MinWorkers, "max", p.settings.MaxWorkers)
	for range p.settings.MinWorkers {
		p.createWorker(ctx)
	}
	go p.dispatcher(ctx)
}

// Stop stops polling, lets running jobs finish and waits for every worker.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopWorkerChannel)
		if p.cancel != nil {
			p.cancel()
		}
	})
	<-p.dispatcherDone
	p.workerWaitGroup.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) WorkerCount() int64 {
	return atomic.LoadInt64(&p.currentWorkerCount)
}

func (p *Pool) dispatcher(ctx context.Context) {
	defer close(p.dispatcherDone)
	p.logger.Info("Dispatcher started")
	for {
		select {
		case <-p.dispatcherChannel:
			metrics.StartDispatcherSignalCount()
			if p.WorkerCount() < p.settings.MaxWorkers {
				p.logger.Info("Creating new worker", "workerCount", p.WorkerCount())
				p.createWorker(ctx)
			}
		case <-p.stopWorkerChannel:
			return
		}
	}
}

func (p *Pool) createWorker(ctx context.Context) {
	p.workerWaitGroup.Add(1)
	atomic.AddInt64(&p.currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	go p.worker(ctx)
	p.logger.Debug("Created new worker")
}

func (p *Pool) worker(ctx context.Context) {
	lastJob := time.Now()
	for {
		select {
		case <-p.stopWorkerChannel:
			p.removeWorker("Stop worker signal received")
			return
		default:
		}

		job, ok, err := p.queue.Dequeue(ctx, p.settings.PollTimeout)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				p.removeWorker("Pool context done")
				return
			}
			p.logger.Error("Failed to poll job queue", "error", err)
			p.pause(ctx)
		case ok:
			metrics.DecrementJobsInQueue()
			p.signalBacklog(ctx)
			p.executeJob(ctx, job)
			lastJob = time.Now()
		case time.Since(lastJob) >= p.settings.IdleTimeout:
			if p.tryRetire() {
				p.workerDone("Idle worker timeout")
				return
			}
		}
	}
}

// tryRetire decrements the worker count unless that would drop below MinWorkers.
func (p *Pool) tryRetire() bool {
	for {
		n := atomic.LoadInt64(&p.currentWorkerCount)
		if n <= p.settings.MinWorkers {
			return false
		}
		if atomic.CompareAndSwapInt64(&p.currentWorkerCount, n, n-1) {
			return true
		}
	}
}

func (p *Pool) pause(ctx context.Context) {
	select {
	case <-time.After(p.settings.PollTimeout):
	case <-ctx.Done():
	case <-p.stopWorkerChannel:
	}
}
