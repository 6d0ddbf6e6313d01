package postgres

import (
	"context"
	"fmt"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.TimelapseJob) error {
	query := `
		INSERT INTO timelapse_jobs (
			id, requested_by, region_west, region_south, region_east, region_north,
			start_year, end_year, task_name, manifest_key, remote_task_id,
			status, frame_count, sequence_length, attempt, max_attempts,
			error_message, created_at, updated_at, submitted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.RequestedBy,
		job.Region.West, job.Region.South, job.Region.East, job.Region.North,
		job.StartYear, job.EndYear, job.TaskName, job.ManifestKey, job.RemoteTaskID,
		string(job.Status), job.FrameCount, job.SequenceLength,
		job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.TimelapseJob) error {
	query := `
		UPDATE timelapse_jobs SET
			status=$2, task_name=$3, manifest_key=$4, remote_task_id=$5,
			frame_count=$6, sequence_length=$7, attempt=$8,
			error_message=$9, updated_at=$10, submitted_at=$11
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.TaskName, job.ManifestKey, job.RemoteTaskID,
		job.FrameCount, job.SequenceLength, job.Attempt,
		job.ErrorMessage, job.UpdatedAt, job.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.TimelapseJob, error) {
	query := `
		SELECT id, requested_by, region_west, region_south, region_east, region_north,
			start_year, end_year, task_name, manifest_key, remote_task_id,
			status, frame_count, sequence_length, attempt, max_attempts,
			error_message, created_at, updated_at, submitted_at
		FROM timelapse_jobs WHERE id=$1`

	job := &entity.TimelapseJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.RequestedBy,
		&job.Region.West, &job.Region.South, &job.Region.East, &job.Region.North,
		&job.StartYear, &job.EndYear, &job.TaskName, &job.ManifestKey, &job.RemoteTaskID,
		&status, &job.FrameCount, &job.SequenceLength,
		&job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
