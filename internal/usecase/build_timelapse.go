package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/adiack/geospatial-OB25D/internal/domain/port"
	"github.com/adiack/geospatial-OB25D/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PipelineConfig carries every knob of one timelapse build. It is plain data
// handed to the constructor; nothing reads configuration globally.
type PipelineConfig struct {
	Datasets   DatasetConfig
	Compositor CompositorConfig

	StartYear int
	EndYear   int

	FPS               float64
	SecondsPerYear    float64
	FreezeHoldSeconds float64

	DefaultRegion entity.Region
	Dimensions    int
	MaxPixels     int64
	TaskName      string

	MaxRetries int
}

func (c PipelineConfig) Validate() error {
	if err := c.Datasets.Validate(); err != nil {
		return err
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("pipeline config: start year %d after end year %d", c.StartYear, c.EndYear)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("pipeline config: fps must be positive, got %v", c.FPS)
	}
	if c.Compositor.DilateRadiusMeters < 0 {
		return fmt.Errorf("pipeline config: dilation radius must be >= 0, got %v", c.Compositor.DilateRadiusMeters)
	}
	if c.Compositor.Threshold < 0 || c.Compositor.Threshold > 1 {
		return fmt.Errorf("pipeline config: threshold must be in [0,1], got %v", c.Compositor.Threshold)
	}
	return nil
}

// Years lists the configured years in ascending order.
func (c PipelineConfig) Years() []int {
	years := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// BuildTimelapseUseCase runs the frame pipeline end to end: resolve the
// archives, compose one frame per year, expand the playback sequence, and
// submit the export task. Frames for different years share no mutable state;
// they are computed sequentially here only because correctness does not need
// parallelism.
type BuildTimelapseUseCase struct {
	repo      port.JobRepository
	resolver  *DatasetResolver
	composer  *FrameCompositor
	exporter  *ExportTaskBuilder
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       PipelineConfig
}

func NewBuildTimelapseUseCase(
	repo port.JobRepository,
	engine port.RasterEngine,
	render port.RenderService,
	storage port.ManifestStorage,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg PipelineConfig,
) (*BuildTimelapseUseCase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BuildTimelapseUseCase{
		repo:      repo,
		resolver:  NewDatasetResolver(engine),
		composer:  NewFrameCompositor(engine, cfg.Compositor, logger),
		exporter:  NewExportTaskBuilder(storage, render, logger),
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// pipelineResult is what one successful run hands back to the bookkeeping
// layer.
type pipelineResult struct {
	Task         entity.ExportTask
	RemoteTaskID string
	SourceFrames int
}

// Execute handles one timelapse request message from the broker.
func (uc *BuildTimelapseUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "BuildTimelapseUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.TimelapseRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	region := uc.cfg.DefaultRegion
	if msg.Region != nil {
		region = *msg.Region
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.Int("job.start_year", uc.cfg.StartYear),
		attribute.Int("job.end_year", uc.cfg.EndYear),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("requested_by", msg.RequestedBy))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewTimelapseJob(msg.RequestedBy, region, uc.cfg.StartYear, uc.cfg.EndYear, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	result, err := uc.run(ctx, region)
	if err != nil {
		log.Error("pipeline failed", zap.Error(err))
		if isPermanent(err) {
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, err.Error())
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, err.Error(), log)
	}

	job.MarkSubmitted(result.Task, result.RemoteTaskID, result.SourceFrames)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to SUBMITTED", zap.Error(err))
		return fmt.Errorf("update job submitted: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	metrics.JobsProcessedTotal.WithLabelValues("submitted").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	log.Info("timelapse export task submitted",
		zap.String("task_name", result.Task.Name),
		zap.String("remote_task_id", result.RemoteTaskID),
		zap.Int("source_frames", result.SourceFrames),
		zap.Int("sequence_length", result.Task.FrameCount),
	)
	return nil
}

// BuildExportTask is the plain callable entry point: run the full pipeline
// for a region and return the submitted task. The broker handler and the
// cron scheduler both reduce to this.
func (uc *BuildTimelapseUseCase) BuildExportTask(ctx context.Context, region entity.Region) (entity.ExportTask, error) {
	result, err := uc.run(ctx, region)
	if err != nil {
		return entity.ExportTask{}, err
	}
	return result.Task, nil
}

func (uc *BuildTimelapseUseCase) run(ctx context.Context, region entity.Region) (pipelineResult, error) {
	tracer := otel.Tracer("usecase")

	if err := region.Validate(); err != nil {
		return pipelineResult{}, err
	}

	// Resolve archives into query-ready handles. A missing archive or band
	// aborts before any frame work.
	resolveStart := time.Now()
	ctxR, spanR := tracer.Start(ctx, "resolve_datasets")
	datasets, err := uc.resolver.Resolve(ctxR, uc.cfg.Datasets)
	spanR.End()
	if err != nil {
		return pipelineResult{}, err
	}
	metrics.StageDuration.WithLabelValues("resolve").Observe(time.Since(resolveStart).Seconds())

	// One frame per configured year, ascending. Any MissingDataError aborts
	// the whole run; a partial sequence is worse than no sequence.
	composeStart := time.Now()
	ctxC, spanC := tracer.Start(ctx, "compose_frames")
	years := uc.cfg.Years()
	frames := make([]entity.Frame, 0, len(years))
	for _, year := range years {
		key := MapYear(year)
		frame, err := uc.composer.ComposeFrame(ctxC, datasets, key, uc.cfg.Datasets.BuildingsEpochAttr)
		if err != nil {
			spanC.End()
			return pipelineResult{}, err
		}
		frames = append(frames, frame)
	}
	spanC.End()
	metrics.StageDuration.WithLabelValues("compose").Observe(time.Since(composeStart).Seconds())

	seq := entity.NewFrameSequence(frames, uc.cfg.FPS, uc.cfg.SecondsPerYear, uc.cfg.FreezeHoldSeconds)

	submitStart := time.Now()
	ctxS, spanS := tracer.Start(ctx, "submit_export")
	task, remoteID, err := uc.exporter.BuildAndSubmit(ctxS, uc.cfg.TaskName, seq, region, uc.cfg.Dimensions, uc.cfg.MaxPixels)
	spanS.End()
	if err != nil {
		return pipelineResult{}, err
	}
	metrics.StageDuration.WithLabelValues("submit").Observe(time.Since(submitStart).Seconds())

	return pipelineResult{Task: task, RemoteTaskID: remoteID, SourceFrames: len(frames)}, nil
}

// isPermanent reports whether the error is part of the pipeline's taxonomy
// of non-retryable failures. Everything else (transport, storage, db) is
// retried via broker redelivery.
func isPermanent(err error) bool {
	var dsErr *entity.DataSourceError
	var mdErr *entity.MissingDataError
	var rejErr *entity.ExportRejectedError
	return errors.As(err, &dsErr) || errors.As(err, &mdErr) || errors.As(err, &rejErr)
}

func (uc *BuildTimelapseUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.TimelapseJob,
	msg entity.TimelapseRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *BuildTimelapseUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.TimelapseJob,
	msg entity.TimelapseRequestMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), uc.cfg.TaskName, errMsg)
	}

	return nil
}

func (uc *BuildTimelapseUseCase) publishStatus(ctx context.Context, job *entity.TimelapseJob, log *zap.Logger) {
	statusMsg := entity.TimelapseStatusMessage{
		JobID:          job.ID,
		RequestedBy:    job.RequestedBy,
		Status:         job.Status,
		TaskName:       job.TaskName,
		RemoteTaskID:   job.RemoteTaskID,
		FrameCount:     job.FrameCount,
		SequenceLength: job.SequenceLength,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
