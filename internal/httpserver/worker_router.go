package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"email-ingest/internal/handler"
	"email-ingest/internal/worker"
)

const (
	defaultPoisonLimit = 20
	maxPoisonLimit     = 200
)

// PoisonLister reads back recently dropped messages.
type PoisonLister interface {
	Recent(ctx context.Context, n int64) ([]worker.PoisonEvent, error)
}

// NewWorkerRouter builds the worker's metrics server. poison may be nil when
// no Redis sink is configured; /poison then answers 404.
func NewWorkerRouter(poison PoisonLister, log *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), MetricsMiddleware())

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/poison", func(c *gin.Context) {
		if poison == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "poison recording is not enabled"})
			return
		}

		limit := defaultPoisonLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = min(n, maxPoisonLimit)
		}

		events, err := poison.Recent(c.Request.Context(), int64(limit))
		if err != nil {
			log.Error("Failed to read poison events", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
	})

	return &Router{Engine: r}
}
