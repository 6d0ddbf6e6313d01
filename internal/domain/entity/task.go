package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExportTask is the immutable job description handed to the render service.
// It references the frame sequence by its manifest object key rather than
// embedding pixel data. Once built it is submitted exactly once and never
// mutated; the render service owns everything after acceptance.
type ExportTask struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ManifestKey string    `json:"manifest_key"`
	FrameCount  int       `json:"frame_count"`
	Region      Region    `json:"region"`
	Dimensions  int       `json:"dimensions"`
	FPS         float64   `json:"fps"`
	MaxPixels   int64     `json:"max_pixels"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewExportTask builds the descriptor for one rendered video. The manifest
// key is derived from the task id; the sequence manifest must be uploaded
// under that key before submission. MaxPixels bounds the render backend's
// cost; enforcing it is the render service's job.
func NewExportTask(name string, seq FrameSequence, region Region, dimensions int, maxPixels int64) ExportTask {
	id := uuid.New()
	return ExportTask{
		ID:          id,
		Name:        name,
		ManifestKey: "manifests/" + id.String() + ".json",
		FrameCount:  seq.Len(),
		Region:      region,
		Dimensions:  dimensions,
		FPS:         seq.FPS,
		MaxPixels:   maxPixels,
		CreatedAt:   time.Now().UTC(),
	}
}
