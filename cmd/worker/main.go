package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/adiack/geospatial-OB25D/internal/domain/port"
	"github.com/adiack/geospatial-OB25D/internal/infra/config"
	"github.com/adiack/geospatial-OB25D/internal/infra/email"
	"github.com/adiack/geospatial-OB25D/internal/infra/metrics"
	miniostorage "github.com/adiack/geospatial-OB25D/internal/infra/minio"
	"github.com/adiack/geospatial-OB25D/internal/infra/postgres"
	"github.com/adiack/geospatial-OB25D/internal/infra/rabbitmq"
	"github.com/adiack/geospatial-OB25D/internal/infra/raster"
	"github.com/adiack/geospatial-OB25D/internal/infra/render"
	"github.com/adiack/geospatial-OB25D/internal/infra/scheduler"
	"github.com/adiack/geospatial-OB25D/internal/infra/tracing"
	"github.com/adiack/geospatial-OB25D/internal/usecase"
	"github.com/adiack/geospatial-OB25D/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting growth-timelapse-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
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

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		ManifestBucket: cfg.MinIOManifestBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// External service clients
	engine, err := raster.NewClient(raster.ClientConfig{
		BaseURL: cfg.RasterEngineURL,
		Timeout: time.Duration(cfg.RasterEngineTimeout) * time.Second,
	}, log)
	fatalOnErr(err, "create raster engine client")

	renderClient := render.NewClient(cfg.RenderServiceURL, log)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc, err := usecase.NewBuildTimelapseUseCase(
		repo, engine, renderClient, storage,
		statusPub, dlqPub, notifier,
		log,
		pipelineConfig(cfg),
	)
	fatalOnErr(err, "create use case")

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Optional periodic rebuild of the default region
	var sched *scheduler.Scheduler
	if cfg.RebuildCronSpec != "" {
		region := defaultRegion(cfg)
		sched, err = scheduler.New(cfg.RebuildCronSpec, func(jobCtx context.Context) {
			if _, err := uc.BuildExportTask(jobCtx, region); err != nil {
				log.Error("scheduled rebuild failed", zap.Error(err))
			}
		}, log)
		fatalOnErr(err, "create scheduler")
		sched.Start()
	}

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQRequestQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("growth-timelapse-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	if sched != nil {
		sched.Stop()
	}
	consumer.Close()
	log.Info("growth-timelapse-service stopped")
}

func pipelineConfig(cfg *config.Config) usecase.PipelineConfig {
	return usecase.PipelineConfig{
		Datasets: usecase.DatasetConfig{
			LightsArchiveA:     cfg.LightsArchiveA,
			LightsArchiveB:     cfg.LightsArchiveB,
			CutoverYear:        cfg.LightsCutoverYear,
			LightsBand:         cfg.LightsBand,
			BuildingsArchive:   cfg.BuildingsArchive,
			BuildingsBand:      cfg.BuildingsBand,
			BuildingsEpochAttr: cfg.BuildingsEpochAttr,
		},
		Compositor: usecase.CompositorConfig{
			Threshold:          cfg.BuildingThreshold,
			DilateRadiusMeters: cfg.DilateRadiusMeters,
			LightsVis: port.VisParams{
				Min:     cfg.LightsVisMin,
				Max:     cfg.LightsVisMax,
				Palette: cfg.LightsPalette,
			},
			BuildingsVis: port.VisParams{
				Min:     cfg.BuildingsVisMin,
				Max:     cfg.BuildingsVisMax,
				Palette: cfg.BuildingsPalette,
			},
		},
		StartYear:         cfg.StartYear,
		EndYear:           cfg.EndYear,
		FPS:               cfg.FrameRate,
		SecondsPerYear:    cfg.SecondsPerYear,
		FreezeHoldSeconds: cfg.FreezeHoldSeconds,
		DefaultRegion:     defaultRegion(cfg),
		Dimensions:        cfg.ExportDimensions,
		MaxPixels:         cfg.ExportMaxPixels,
		TaskName:          cfg.ExportTaskName,
		MaxRetries:        cfg.MaxRetries,
	}
}

func defaultRegion(cfg *config.Config) entity.Region {
	return entity.Region{
		West:  cfg.RegionWest,
		South: cfg.RegionSouth,
		East:  cfg.RegionEast,
		North: cfg.RegionNorth,
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
