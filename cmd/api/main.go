package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"email-ingest/internal/backend"
	"email-ingest/internal/config"
	"email-ingest/internal/handler"
	"email-ingest/internal/httpserver"
	"email-ingest/internal/service/ingest"
	"email-ingest/pkg/awsclient"
	"email-ingest/pkg/logger"
	"email-ingest/pkg/otel"
	"email-ingest/pkg/secret"
)

func main() {
	log := logger.NewLogger("api")
	defer log.Sync()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if err := cfg.ValidateGateway(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    "email-ingest-api",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	// AWS clients
	awsCfg, err := awsclient.Load(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	q, pinger, closeQueue, err := backend.OpenQueue(cfg, awsCfg, log)
	if err != nil {
		log.Fatal("Failed to open queue", zap.Error(err))
	}
	defer closeQueue()

	ssmClient := secret.NewSSMClient(awsCfg, awsclient.EndpointOverride(cfg.AWS))
	var tokens ingest.TokenSource = ingest.NewSecretTokenSource(secret.NewSSMProvider(ssmClient), cfg.Secret.TokenParamName)
	if cfg.Secret.CacheTTL > 0 {
		log.Info("Token caching enabled", zap.Duration("ttl", cfg.Secret.CacheTTL))
		tokens = ingest.NewCachedTokenSource(tokens, cfg.Secret.CacheTTL)
	}

	// Services and handlers
	ingestService := ingest.NewService(tokens, q, log)
	ingestHandler := handler.NewIngestHandler(ingestService)

	gin.SetMode(gin.ReleaseMode)
	router := httpserver.NewRouter(ingestHandler, pinger, log)
	srv := router.Server(cfg.Server.Port)

	go func() {
		log.Info("Starting intake gateway",
			zap.String("port", cfg.Server.Port),
			zap.String("queue_backend", cfg.Queue.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down intake gateway...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("Intake gateway stopped")
}
