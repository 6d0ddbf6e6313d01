package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/adiack/geospatial-OB25D/internal/domain/port"
	"github.com/adiack/geospatial-OB25D/internal/infra/metrics"
	"go.uber.org/zap"
)

// sequenceManifest is the JSON document the render service fetches from
// object storage to know which raster to draw on each playback frame.
type sequenceManifest struct {
	TaskID     string         `json:"task_id"`
	FPS        float64        `json:"fps"`
	FrameCount int            `json:"frame_count"`
	Region     entity.Region  `json:"region"`
	Frames     []entity.Frame `json:"frames"`
}

// ExportTaskBuilder packages a frame sequence into one export task and hands
// it to the render service. Submission is fire-and-forget: acceptance means
// queued for asynchronous rendering, and a rejection is surfaced without
// retry.
type ExportTaskBuilder struct {
	storage port.ManifestStorage
	render  port.RenderService
	logger  *zap.Logger
}

func NewExportTaskBuilder(storage port.ManifestStorage, render port.RenderService, logger *zap.Logger) *ExportTaskBuilder {
	return &ExportTaskBuilder{storage: storage, render: render, logger: logger}
}

// BuildAndSubmit uploads the sequence manifest, then submits the task
// descriptor once. It returns the task and the render service's task id.
func (b *ExportTaskBuilder) BuildAndSubmit(ctx context.Context, name string, seq entity.FrameSequence, region entity.Region, dimensions int, maxPixels int64) (entity.ExportTask, string, error) {
	task := entity.NewExportTask(name, seq, region, dimensions, maxPixels)

	manifest := sequenceManifest{
		TaskID:     task.ID.String(),
		FPS:        seq.FPS,
		FrameCount: seq.Len(),
		Region:     region,
		Frames:     seq.Frames,
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return entity.ExportTask{}, "", fmt.Errorf("marshal sequence manifest: %w", err)
	}
	if err := b.storage.UploadManifest(ctx, task.ManifestKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return entity.ExportTask{}, "", fmt.Errorf("upload sequence manifest: %w", err)
	}

	remoteID, err := b.render.SubmitExport(ctx, task)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("rejected").Inc()
		return entity.ExportTask{}, "", err
	}
	metrics.ExportsTotal.WithLabelValues("accepted").Inc()

	b.logger.Info("export task accepted",
		zap.String("task_name", task.Name),
		zap.String("remote_task_id", remoteID),
		zap.Int("sequence_length", task.FrameCount),
	)
	return task, remoteID, nil
}
