package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of ingest jobs waiting in the queue",
})

var dispatcherSignalCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start a worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var documentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "documents_ingested_total",
	Help: "Documents that reached a final status, labelled by status",
}, []string{"status"})

var chunkEmbeddingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chunk_embedding_failures_total",
	Help: "Chunks whose embedding failed, labelled by error code",
}, []string{"code"})

var embeddingRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "embedding_retries_total",
	Help: "Embedding calls retried after a transient failure",
})

var passagesStored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "passages_stored_total",
	Help: "Passages written to tenant stores",
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *HttpStatusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func SetJobsInQueue(n int64) {
	countJobsInQueue.Set(float64(n))
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}

func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func RecordDocumentStatus(status string) {
	documentsIngested.WithLabelValues(status).Inc()
}

func RecordChunkEmbeddingFailure(code string) {
	if code == "" {
		code = "unknown"
	}
	chunkEmbeddingFailures.WithLabelValues(code).Inc()
}

func RecordEmbeddingRetry() {
	embeddingRetries.Inc()
}

func RecordPassagesStored(n int) {
	passagesStored.Add(float64(n))
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_document_duration_seconds",
	Help:    "Total time spent ingesting one document.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 300},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
