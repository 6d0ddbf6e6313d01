package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTask() entity.ExportTask {
	seq := entity.NewFrameSequence([]entity.Frame{
		{Year: 2016, Image: "r1"},
		{Year: 2017, Image: "r2"},
	}, 3, 1, 1)
	return entity.NewExportTask("urban-growth-timelapse", seq,
		entity.Region{West: 36.7, South: -1.44, East: 37.1, North: -1.16}, 720, 100_000_000)
}

func TestSubmitExportAccepted(t *testing.T) {
	task := testTask()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/exports", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, task.Name, body["name"])
		assert.Equal(t, task.ManifestKey, body["manifest_key"])
		assert.Equal(t, float64(100_000_000), body["max_pixels"])
		assert.Equal(t, float64(720), body["dimensions"])
		// Closed five-point ring for the bounding box.
		assert.Len(t, body["region"], 5)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"task_id": "render-42"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zap.NewNop())
	remoteID, err := client.SubmitExport(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "render-42", remoteID)
}

func TestSubmitExportRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "frame rate not positive"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zap.NewNop())
	_, err := client.SubmitExport(context.Background(), testTask())

	var rejected *entity.ExportRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "urban-growth-timelapse", rejected.Task)
	assert.Contains(t, rejected.Reason, "frame rate")
}

func TestSubmitExportServerErrorIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zap.NewNop())
	_, err := client.SubmitExport(context.Background(), testTask())

	require.Error(t, err)
	var rejected *entity.ExportRejectedError
	assert.False(t, errors.As(err, &rejected), "5xx must stay retryable, not map to a rejection")
}
