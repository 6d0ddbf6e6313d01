package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"go.uber.org/zap"
)

// Client submits export tasks to the render service. One POST per task, no
// retries: acceptance means the descriptor is queued for asynchronous
// rendering, and rejection is the caller's to surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type exportRequest struct {
	TaskID      string         `json:"task_id"`
	Name        string         `json:"name"`
	ManifestKey string         `json:"manifest_key"`
	FrameCount  int            `json:"frame_count"`
	Region      [][2]float64   `json:"region"`
	Dimensions  int            `json:"dimensions"`
	FPS         float64        `json:"fps"`
	MaxPixels   int64          `json:"max_pixels"`
}

type exportResponse struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error,omitempty"`
}

func (c *Client) SubmitExport(ctx context.Context, task entity.ExportTask) (string, error) {
	body := exportRequest{
		TaskID:      task.ID.String(),
		Name:        task.Name,
		ManifestKey: task.ManifestKey,
		FrameCount:  task.FrameCount,
		Region:      task.Region.Ring(),
		Dimensions:  task.Dimensions,
		FPS:         task.FPS,
		MaxPixels:   task.MaxPixels,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal export request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/exports", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit export: %w", err)
	}
	defer resp.Body.Close()

	var out exportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("decode export response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK:
		c.logger.Info("render service accepted export task",
			zap.String("task_name", task.Name),
			zap.String("remote_task_id", out.TaskID),
		)
		return out.TaskID, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		reason := out.Error
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", &entity.ExportRejectedError{Task: task.Name, Reason: reason}
	default:
		return "", fmt.Errorf("render service returned %d", resp.StatusCode)
	}
}
