package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"email-ingest/internal/worker"
)

type poisonResponse struct {
	Count  int                  `json:"count"`
	Events []worker.PoisonEvent `json:"events"`
}

func serveWorker(t *testing.T, r *Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	r.Engine.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestWorkerRouter_Poison(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rec := worker.NewRedisPoisonRecorder(rdb, "poison", 100, zap.NewNop())
	for _, id := range []string{"m1", "m2", "m3"} {
		rec.Record(context.Background(), worker.PoisonEvent{MessageID: id, Body: "not json", At: time.Unix(1700000000, 0).UTC()})
	}
	r := NewWorkerRouter(rec, zap.NewNop())

	rr := serveWorker(t, r, "/poison?limit=2")
	require.Equal(t, http.StatusOK, rr.Code)
	var out poisonResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Events, 2)
	assert.Equal(t, "m3", out.Events[0].MessageID)

	rr = serveWorker(t, r, "/poison")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 3, out.Count)

	rr = serveWorker(t, r, "/poison?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWorkerRouter_PoisonDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewWorkerRouter(nil, zap.NewNop())

	assert.Equal(t, http.StatusNotFound, serveWorker(t, r, "/poison").Code)
	assert.Equal(t, http.StatusOK, serveWorker(t, r, "/health").Code)
	assert.Equal(t, http.StatusOK, serveWorker(t, r, "/metrics").Code)
}
