package entity

import "github.com/google/uuid"

// TimelapseRequestMessage is the inbound message from the timelapse.requests
// queue. The front end publishes one per button press with its current
// viewport; Region overrides the configured default when present.
type TimelapseRequestMessage struct {
	JobID       uuid.UUID `json:"job_id"`
	RequestedBy string    `json:"requested_by"`
	UserEmail   string    `json:"user_email,omitempty"`
	Region      *Region   `json:"region,omitempty"`
}

// TimelapseStatusMessage is the outbound message published to the
// timelapse.status queue on every job state transition.
type TimelapseStatusMessage struct {
	JobID          uuid.UUID `json:"job_id"`
	RequestedBy    string    `json:"requested_by"`
	Status         JobStatus `json:"status"`
	TaskName       string    `json:"task_name,omitempty"`
	RemoteTaskID   string    `json:"remote_task_id,omitempty"`
	FrameCount     int       `json:"frame_count,omitempty"`
	SequenceLength int       `json:"sequence_length,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"max_attempts"`
}
