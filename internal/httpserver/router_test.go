package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"email-ingest/internal/handler"
	"email-ingest/internal/service/ingest"
	"email-ingest/pkg/queue"
	"email-ingest/pkg/secret"
	"email-ingest/pkg/trace"
)

const tokenParam = "/email-ingest/token"

type fakePinger struct{ connected bool }

func (p fakePinger) IsConnected() bool { return p.connected }

type gateway struct {
	router   *Router
	queue    *queue.MemoryQueue
	provider *secret.MemoryProvider
}

func newGateway(t *testing.T, pinger queue.Pinger) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	q := queue.NewMemoryQueue()
	provider := secret.NewMemoryProvider(map[string]string{tokenParam: "secret123"})
	svc := ingest.NewService(ingest.NewSecretTokenSource(provider, tokenParam), q, zap.NewNop()).
		WithClock(func() time.Time { return time.Unix(1700000000, 0) })

	return &gateway{
		router:   NewRouter(handler.NewIngestHandler(svc), pinger, zap.NewNop()),
		queue:    q,
		provider: provider,
	}
}

func (g *gateway) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	g.router.Engine.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	g := newGateway(t, nil)

	for _, path := range []string{"/health", "/healthz"} {
		rr := g.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, map[string]string{"status": "ok"}, decode(t, rr))

		rr = g.do(http.MethodHead, path, "")
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, 0, g.provider.Lookups())
}

func TestIngest_Accepted(t *testing.T) {
	g := newGateway(t, nil)

	rr := g.do(http.MethodPost, "/ingest", `{"token":"secret123","data":{"email_timestream":1700000000,"hello":"world"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]string{"status": "accepted"}, decode(t, rr))

	msgs, err := g.queue.ReceiveBatch(context.Background(), queue.ReceiveOptions{MaxMessages: 10, Visibility: time.Minute})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"email_timestream":1700000000,"hello":"world"}`, msgs[0].Body)
}

func TestIngest_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"wrong token", `{"token":"WRONG","data":{"email_timestream":1700000000}}`, http.StatusUnauthorized, "invalid token"},
		{"wrong token invalid payload", `{"token":"WRONG","data":{"hello":"world"}}`, http.StatusUnauthorized, "invalid token"},
		{"missing timestamp", `{"token":"secret123","data":{"hello":"world"}}`, http.StatusBadRequest, "email_timestream is missing"},
		{"non-integer timestamp", `{"token":"secret123","data":{"email_timestream":"abc"}}`, http.StatusBadRequest, "email_timestream must be a positive epoch integer"},
		{"zero timestamp", `{"token":"secret123","data":{"email_timestream":0}}`, http.StatusBadRequest, "email_timestream must be a positive epoch integer"},
		{"future timestamp", `{"token":"secret123","data":{"email_timestream":1700000301}}`, http.StatusBadRequest, "email_timestream is in the future"},
		{"missing token", `{"data":{"email_timestream":1700000000}}`, http.StatusBadRequest, "invalid request"},
		{"empty token", `{"token":"","data":{"email_timestream":1700000000}}`, http.StatusBadRequest, "invalid request"},
		{"missing data", `{"token":"secret123"}`, http.StatusBadRequest, "invalid request"},
		{"data not an object", `{"token":"secret123","data":[1,2]}`, http.StatusBadRequest, "invalid request"},
		{"malformed body", `{"token":`, http.StatusBadRequest, "invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(t, nil)

			rr := g.do(http.MethodPost, "/ingest", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, map[string]string{"error": tt.reason}, decode(t, rr))
			assert.Equal(t, 0, g.queue.Len())
		})
	}
}

func TestIngest_BodyTooLarge(t *testing.T) {
	g := newGateway(t, nil)

	pad := strings.Repeat("x", handler.MaxBodyBytes)
	rr := g.do(http.MethodPost, "/ingest", `{"token":"secret123","data":{"email_timestream":1700000000,"pad":"`+pad+`"}}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, map[string]string{"error": "request body too large"}, decode(t, rr))
	assert.Equal(t, 0, g.provider.Lookups())
	assert.Equal(t, 0, g.queue.Len())
}

func TestIngest_HugeTimestampIsRejectedQuickly(t *testing.T) {
	g := newGateway(t, nil)

	rr := g.do(http.MethodPost, "/ingest", `{"token":"secret123","data":{"email_timestream":1e600000000}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, map[string]string{"error": "email_timestream is in the future"}, decode(t, rr))
	assert.Equal(t, 0, g.queue.Len())
}

func TestIngest_SecretFailureIsInternalError(t *testing.T) {
	g := newGateway(t, nil)
	g.provider = secret.NewMemoryProvider(nil)
	svc := ingest.NewService(ingest.NewSecretTokenSource(g.provider, tokenParam), g.queue, zap.NewNop())
	g.router = NewRouter(handler.NewIngestHandler(svc), nil, zap.NewNop())

	rr := g.do(http.MethodPost, "/ingest", `{"token":"secret123","data":{"email_timestream":1}}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 0, g.queue.Len())
}

func TestReadyz(t *testing.T) {
	rr := newGateway(t, nil).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = newGateway(t, fakePinger{connected: true}).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = newGateway(t, fakePinger{connected: false}).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "queue_not_ready", decode(t, rr)["status"])
}

func TestTraceHeader(t *testing.T) {
	g := newGateway(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(trace.HeaderName, "abc-123")
	rr := httptest.NewRecorder()
	g.router.Engine.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(trace.HeaderName))

	rr = g.do(http.MethodGet, "/health", "")
	assert.NotEmpty(t, rr.Header().Get(trace.HeaderName))
}

func TestMetricsEndpoint(t *testing.T) {
	g := newGateway(t, nil)
	g.do(http.MethodGet, "/health", "")

	rr := g.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_request_duration_seconds")
}
