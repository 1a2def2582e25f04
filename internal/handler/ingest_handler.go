package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"email-ingest/internal/service/ingest"
	"email-ingest/pkg/metrics"
)

// MaxBodyBytes caps the /ingest request body.
const MaxBodyBytes = 1 << 20

type IngestHandler struct {
	ingestService *ingest.Service
}

func NewIngestHandler(ingestService *ingest.Service) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
	}
}

// Ingest handles POST /ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req struct {
		Token string          `json:"token" binding:"required"`
		Data  json.RawMessage `json:"data" binding:"required"`
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.IncrementIngestRequest("invalid")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": ingest.ReasonInvalidRequest})
		return
	}

	err := h.ingestService.Ingest(c.Request.Context(), ingest.Request{Token: req.Token, Data: req.Data})
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
		return
	}

	if errors.Is(err, ingest.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if v, ok := ingest.IsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": v.Reason})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// Health handles GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
