package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"email-ingest/internal/backend"
	"email-ingest/internal/config"
	"email-ingest/internal/httpserver"
	"email-ingest/internal/worker"
	"email-ingest/pkg/awsclient"
	"email-ingest/pkg/logger"
	"email-ingest/pkg/objectstore"
	"email-ingest/pkg/otel"
	"email-ingest/pkg/queue"
	redisclient "email-ingest/pkg/redis"
)

func main() {
	log := logger.NewLogger("worker")
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    "email-ingest-worker",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	awsCfg, err := awsclient.Load(ctx, cfg.AWS)
	if err != nil {
		log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	q, _, closeQueue, err := backend.OpenQueue(cfg, awsCfg, log)
	if err != nil {
		log.Fatal("Failed to open queue", zap.Error(err))
	}
	defer closeQueue()

	s3Store := objectstore.NewS3Store(objectstore.NewS3Client(awsCfg, awsclient.EndpointOverride(cfg.AWS)), cfg.Storage.Bucket)
	if cfg.Storage.EnsureBucket {
		if err := s3Store.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to ensure bucket", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
		}
	}

	w := worker.New(q, s3Store, log, worker.Options{
		Receive:      queue.DefaultReceiveOptions(),
		PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
	})

	// Poison events: always logged, additionally kept in Redis when configured
	var poisonLister httpserver.PoisonLister
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		redisRecorder := worker.NewRedisPoisonRecorder(rdb, cfg.Poison.RedisKey, cfg.Poison.MaxLen, log)
		w.WithPoisonRecorder(worker.MultiRecorder{worker.NewLogPoisonRecorder(log), redisRecorder})
		poisonLister = redisRecorder
	}

	var metricsSrv *http.Server
	if cfg.Worker.MetricsPort != "" {
		gin.SetMode(gin.ReleaseMode)
		metricsSrv = httpserver.NewWorkerRouter(poisonLister, log).Server(cfg.Worker.MetricsPort)

		go func() {
			log.Info("Metrics server starting", zap.String("port", cfg.Worker.MetricsPort))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	if err := w.Run(ctx); err != nil {
		log.Error("Worker exited with error", zap.Error(err))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info("Ingestion worker shutdown complete")
}
