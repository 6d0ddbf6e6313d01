package port

import (
	"context"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
)

// RenderService accepts an export task for asynchronous video rendering and
// delivery. SubmitExport returns the remote task id on acceptance; a decline
// yields *entity.ExportRejectedError. Acceptance means queued, not rendered.
type RenderService interface {
	SubmitExport(ctx context.Context, task entity.ExportTask) (string, error)
}
