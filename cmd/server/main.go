package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Samura1T/College-project-js/internal/infra/config"
	"github.com/Samura1T/College-project-js/internal/infra/ffmpeg"
	"github.com/Samura1T/College-project-js/internal/infra/httpapi"
	"github.com/Samura1T/College-project-js/internal/infra/metrics"
	miniostorage "github.com/Samura1T/College-project-js/internal/infra/minio"
	"github.com/Samura1T/College-project-js/internal/infra/ml"
	"github.com/Samura1T/College-project-js/internal/infra/postgres"
	"github.com/Samura1T/College-project-js/internal/infra/tracing"
	"github.com/Samura1T/College-project-js/internal/usecase"
	"github.com/Samura1T/College-project-js/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting emotion-recognition-backend")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if collector unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// Object storage for source videos
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.MinIOVideoBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")

	// Infra adapters
	emotionRepo := postgres.NewEmotionRepository(pool)
	cameraRepo := postgres.NewCameraRepository(pool)
	extractor := ffmpeg.NewExtractor(cfg.FramesDir, cfg.FrameRate, cfg.MaxFrames, log)
	classifier := ml.NewClient(cfg.MLServiceURL, cfg.MLTimeout, cfg.ReliabilityThreshold, log)

	pipeline := usecase.NewIngestPipeline(
		classifier, extractor, emotionRepo, storage, log,
		usecase.IngestConfig{
			FramesDir: cfg.FramesDir,
			VideosDir: cfg.VideosDir,
			FrameRate: cfg.FrameRate,
			MaxFrames: cfg.MaxFrames,
		},
	)

	// Background frame cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				extractor.CleanupOlderThan(cfg.CleanupMaxAge)
			}
		}
	}()

	// Metrics server
	metricsSrv := metrics.StartServer(ctx, cfg.MetricsPort, log)

	// API server
	handler := httpapi.NewHandler(pipeline, cameraRepo, classifier, log)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler.Routes(),
	}

	go func() {
		log.Info("api server starting", zap.Int("port", cfg.HTTPPort))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server error", zap.Error(err))
			cancel()
		}
	}()

	if !classifier.HealthCheck(ctx) {
		log.Warn("classification service not reachable at startup", zap.String("url", cfg.MLServiceURL))
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	log.Info("emotion-recognition-backend stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
