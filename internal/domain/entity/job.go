package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusSubmitted  JobStatus = "SUBMITTED"
	JobStatusFailed     JobStatus = "FAILED"
)

// TimelapseJob records one pipeline invocation: a request to build the
// growth timelapse for a region and submit it for rendering. SUBMITTED means
// the render service accepted the export task; render completion is tracked
// by the render service, not here.
type TimelapseJob struct {
	ID             uuid.UUID
	RequestedBy    string
	Region         Region
	StartYear      int
	EndYear        int
	TaskName       string
	ManifestKey    string
	RemoteTaskID   string
	Status         JobStatus
	FrameCount     int
	SequenceLength int
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SubmittedAt    *time.Time
}

func NewTimelapseJob(requestedBy string, region Region, startYear, endYear, maxAttempts int) *TimelapseJob {
	now := time.Now().UTC()
	return &TimelapseJob{
		ID:          uuid.New(),
		RequestedBy: requestedBy,
		Region:      region,
		StartYear:   startYear,
		EndYear:     endYear,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *TimelapseJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

// MarkSubmitted records acceptance by the render service. sourceFrames is
// the pre-expansion per-year frame count; the sequence length comes from the
// task descriptor.
func (j *TimelapseJob) MarkSubmitted(task ExportTask, remoteTaskID string, sourceFrames int) {
	now := time.Now().UTC()
	j.Status = JobStatusSubmitted
	j.TaskName = task.Name
	j.ManifestKey = task.ManifestKey
	j.RemoteTaskID = remoteTaskID
	j.FrameCount = sourceFrames
	j.SequenceLength = task.FrameCount
	j.UpdatedAt = now
	j.SubmittedAt = &now
}

func (j *TimelapseJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *TimelapseJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
