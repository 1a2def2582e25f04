package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for WorkerMessages.
const (
	OutcomeStored       = "stored"
	OutcomePoison       = "poison"
	OutcomeStoreFailed  = "store_failed"
	OutcomeDeleteFailed = "delete_failed"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 网关请求结果计数
	IngestRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "Total number of /ingest requests by result",
		},
		[]string{"result"}, // accepted, unauthorized, invalid, error
	)

	// 队列操作延迟（秒）
	QueueOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_operation_duration_seconds",
			Help:    "Queue operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s (long poll)
		},
		[]string{"operation", "status"},
	)

	// 对象存储写入延迟（秒）
	ObjectPutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "object_put_duration_seconds",
			Help:    "Object store PutObject duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"status"},
	)

	// Worker 消息处理计数
	WorkerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_messages_total",
			Help: "Total number of queue messages handled by the worker, by outcome",
		},
		[]string{"outcome"},
	)

	// 空轮询计数
	WorkerEmptyPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_empty_polls_total",
			Help: "Total number of receive calls that returned no messages",
		},
	)
)

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementIngestRequest 增加网关请求计数
func IncrementIngestRequest(result string) {
	IngestRequests.WithLabelValues(result).Inc()
}

// RecordQueueOperation 记录队列操作延迟
func RecordQueueOperation(operation string, err error, duration time.Duration) {
	QueueOperationDuration.WithLabelValues(operation, statusLabel(err)).Observe(duration.Seconds())
}

// RecordObjectPut 记录对象写入延迟
func RecordObjectPut(err error, duration time.Duration) {
	ObjectPutDuration.WithLabelValues(statusLabel(err)).Observe(duration.Seconds())
}

// IncrementWorkerMessage 增加消息处理计数
func IncrementWorkerMessage(outcome string) {
	WorkerMessages.WithLabelValues(outcome).Inc()
}

// IncrementEmptyPoll 增加空轮询计数
func IncrementEmptyPoll() {
	WorkerEmptyPolls.Inc()
}
