package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"email-ingest/internal/handler"
	"email-ingest/pkg/logger"
	"email-ingest/pkg/metrics"
	"email-ingest/pkg/otel"
	"email-ingest/pkg/queue"
	"email-ingest/pkg/trace"
)

type Router struct {
	Engine *gin.Engine
}

// NewRouter builds the gateway routes. pinger may be nil when the queue
// backend has no connection state to report.
func NewRouter(ingestHandler *handler.IngestHandler, pinger queue.Pinger, log *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), AccessLogMiddleware(log), MetricsMiddleware(), otel.GinMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/health", handler.Health)
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		if pinger != nil && !pinger.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "queue_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/ingest", ingestHandler.Ingest)

	return &Router{Engine: r}
}

// Server wraps the engine in an http.Server so callers can shut it down gracefully.
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// TraceMiddleware 读取或生成 trace_id，写入 context 并回写响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := trace.FromHeaders(c.GetHeader(trace.HeaderName), c.GetHeader("X-Request-ID"))
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName, traceID)
		c.Next()
	}
}

// AccessLogMiddleware 每个请求一行日志
func AccessLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithTrace(c.Request.Context(), log).Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// MetricsMiddleware 记录请求延迟，未匹配路由归入 "unmatched"
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
