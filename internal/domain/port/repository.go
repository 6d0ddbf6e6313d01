package port

import (
	"context"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.TimelapseJob) error
	Update(ctx context.Context, job *entity.TimelapseJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.TimelapseJob, error)
}
