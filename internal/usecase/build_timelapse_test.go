package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	jobs map[uuid.UUID]*entity.TimelapseJob
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[uuid.UUID]*entity.TimelapseJob{}}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.TimelapseJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.TimelapseJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.TimelapseJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

type fakePublisher struct {
	statuses [][]byte
}

func (p *fakePublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.statuses = append(p.statuses, msg)
	return nil
}

type fakeDLQ struct {
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	d.reasons = append(d.reasons, reason)
	return nil
}

type fakeNotifier struct {
	notified []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	n.notified = append(n.notified, userEmail)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) UploadManifest(_ context.Context, objectKey string, reader io.Reader, _ int64) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[objectKey] = data
	return nil
}

type fakeRender struct {
	tasks  []entity.ExportTask
	reject string
	err    error
}

func (r *fakeRender) SubmitExport(_ context.Context, task entity.ExportTask) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.reject != "" {
		return "", &entity.ExportRejectedError{Task: task.Name, Reason: r.reject}
	}
	r.tasks = append(r.tasks, task)
	return "remote-" + task.ID.String()[:8], nil
}

type testStack struct {
	engine   *fakeEngine
	repo     *fakeRepo
	pub      *fakePublisher
	dlq      *fakeDLQ
	notifier *fakeNotifier
	storage  *fakeStorage
	render   *fakeRender
	uc       *BuildTimelapseUseCase
}

func testPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Datasets:          testDatasetConfig(),
		Compositor:        testCompositorConfig(),
		StartYear:         2016,
		EndYear:           2023,
		FPS:               3,
		SecondsPerYear:    1,
		FreezeHoldSeconds: 4.0 / 3.0,
		DefaultRegion:     entity.Region{West: 36.7, South: -1.44, East: 37.1, North: -1.16},
		Dimensions:        720,
		MaxPixels:         100_000_000,
		TaskName:          "urban-growth-timelapse",
		MaxRetries:        3,
	}
}

func newTestStack(t *testing.T, cfg PipelineConfig) *testStack {
	t.Helper()
	s := &testStack{
		engine:   newFakeEngine(),
		repo:     newFakeRepo(),
		pub:      &fakePublisher{},
		dlq:      &fakeDLQ{},
		notifier: &fakeNotifier{},
		storage:  newFakeStorage(),
		render:   &fakeRender{},
	}
	uc, err := NewBuildTimelapseUseCase(
		s.repo, s.engine, s.render, s.storage,
		s.pub, s.dlq, s.notifier,
		zap.NewNop(), cfg,
	)
	require.NoError(t, err)
	s.uc = uc
	return s
}

// seedAllYears fills lights for every configured year and buildings for a
// subset, which is the realistic shape of the archives.
func (s *testStack) seedAllYears(cfg PipelineConfig) {
	years := cfg.Years()
	seedLights(s.engine, years...)
	var buildingTiles []fakeTile
	for _, y := range years {
		if y >= 2018 {
			buildingTiles = append(buildingTiles, s.engine.spotTile(y, buildingAttrs(y), 1, 1, 0.9))
		}
	}
	s.engine.addArchive("buildings/temporal", "building_presence", buildingTiles...)
}

func requestMsg(t *testing.T) (uuid.UUID, []byte) {
	t.Helper()
	id := uuid.New()
	data, err := json.Marshal(entity.TimelapseRequestMessage{
		JobID:       id,
		RequestedBy: "map-ui",
		UserEmail:   "analyst@example.com",
	})
	require.NoError(t, err)
	return id, data
}

func TestExecuteSubmitsExportTask(t *testing.T) {
	cfg := testPipelineConfig()
	s := newTestStack(t, cfg)
	s.seedAllYears(cfg)

	jobID, msg := requestMsg(t)
	require.NoError(t, s.uc.Execute(context.Background(), msg))

	job := s.repo.jobs[jobID]
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusSubmitted, job.Status)
	assert.Equal(t, 8, job.FrameCount)
	assert.Equal(t, 8*3+4, job.SequenceLength)
	assert.NotEmpty(t, job.RemoteTaskID)

	require.Len(t, s.render.tasks, 1)
	task := s.render.tasks[0]
	assert.Equal(t, "urban-growth-timelapse", task.Name)
	assert.Equal(t, int64(100_000_000), task.MaxPixels)
	assert.Equal(t, 720, task.Dimensions)
	assert.Equal(t, 28, task.FrameCount)

	// Exactly one manifest, stored under the task's key, listing the full
	// playback sequence.
	require.Len(t, s.storage.objects, 1)
	data, ok := s.storage.objects[task.ManifestKey]
	require.True(t, ok)
	var manifest struct {
		FPS        float64        `json:"fps"`
		FrameCount int            `json:"frame_count"`
		Frames     []entity.Frame `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, 3.0, manifest.FPS)
	assert.Len(t, manifest.Frames, 28)

	// Year order is preserved and repetitions are contiguous.
	assert.Equal(t, 2016, manifest.Frames[0].Year)
	assert.Equal(t, 2016, manifest.Frames[2].Year)
	assert.Equal(t, 2017, manifest.Frames[3].Year)
	for _, f := range manifest.Frames[24:] {
		assert.Equal(t, 2023, f.Year)
	}
}

func TestExecuteMissingLightsYearAborts(t *testing.T) {
	cfg := testPipelineConfig()
	s := newTestStack(t, cfg)
	// 2020 has no lights tile.
	seedLights(s.engine, 2016, 2017, 2018, 2019, 2021, 2022, 2023)
	s.engine.addArchive("buildings/temporal", "building_presence")

	jobID, msg := requestMsg(t)
	require.NoError(t, s.uc.Execute(context.Background(), msg))

	job := s.repo.jobs[jobID]
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "2020")

	// A missing year is permanent: dead-lettered, requester notified, and
	// nothing reaches the render service.
	assert.Len(t, s.dlq.reasons, 1)
	assert.Equal(t, []string{"analyst@example.com"}, s.notifier.notified)
	assert.Empty(t, s.render.tasks)
	assert.Empty(t, s.storage.objects)
}

func TestExecuteUnknownArchiveIsPermanent(t *testing.T) {
	cfg := testPipelineConfig()
	s := newTestStack(t, cfg)
	// Nothing seeded: archive resolution fails before any frame work.

	jobID, msg := requestMsg(t)
	require.NoError(t, s.uc.Execute(context.Background(), msg))

	assert.Equal(t, entity.JobStatusFailed, s.repo.jobs[jobID].Status)
	assert.Len(t, s.dlq.reasons, 1)
	assert.Empty(t, s.render.tasks)
}

func TestExecuteExportRejectionIsPermanent(t *testing.T) {
	cfg := testPipelineConfig()
	s := newTestStack(t, cfg)
	s.seedAllYears(cfg)
	s.render.reject = "pixel budget exceeded"

	jobID, msg := requestMsg(t)
	require.NoError(t, s.uc.Execute(context.Background(), msg))

	job := s.repo.jobs[jobID]
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "pixel budget exceeded")
	assert.Len(t, s.dlq.reasons, 1)
}

func TestExecuteTransportErrorIsRetryable(t *testing.T) {
	cfg := testPipelineConfig()
	s := newTestStack(t, cfg)
	s.seedAllYears(cfg)
	s.render.err = fmt.Errorf("render service returned 503")

	_, msg := requestMsg(t)
	err := s.uc.Execute(context.Background(), msg)

	// A retryable failure propagates so the broker redelivers.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retryable failure")
	assert.Empty(t, s.dlq.reasons)
}

func TestExecuteExhaustedRetriesDeadLetters(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxRetries = 2
	s := newTestStack(t, cfg)
	s.seedAllYears(cfg)
	s.render.err = fmt.Errorf("render service returned 503")

	_, msg := requestMsg(t)
	require.Error(t, s.uc.Execute(context.Background(), msg))

	// Second delivery finds the attempt budget spent.
	require.NoError(t, s.uc.Execute(context.Background(), msg))
	assert.Len(t, s.dlq.reasons, 1)
}

func TestBuildExportTaskValidatesRegion(t *testing.T) {
	cfg := testPipelineConfig()
	s := newTestStack(t, cfg)
	s.seedAllYears(cfg)

	_, err := s.uc.BuildExportTask(context.Background(), entity.Region{West: 10, East: 5, South: 0, North: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "west")
}

func TestBuildExportTaskPlainEntryPoint(t *testing.T) {
	cfg := testPipelineConfig()
	s := newTestStack(t, cfg)
	s.seedAllYears(cfg)

	task, err := s.uc.BuildExportTask(context.Background(), cfg.DefaultRegion)
	require.NoError(t, err)
	assert.Equal(t, 28, task.FrameCount)
	require.Len(t, s.render.tasks, 1)
}

func TestPipelineIsIdempotent(t *testing.T) {
	cfg := testPipelineConfig()

	renderSequence := func() [][][4]uint8 {
		s := newTestStack(t, cfg)
		s.seedAllYears(cfg)

		task, err := s.uc.BuildExportTask(context.Background(), cfg.DefaultRegion)
		require.NoError(t, err)

		var manifest struct {
			Frames []entity.Frame `json:"frames"`
		}
		require.NoError(t, json.Unmarshal(s.storage.objects[task.ManifestKey], &manifest))

		pixels := make([][][4]uint8, 0, len(manifest.Frames))
		for _, f := range manifest.Frames {
			pixels = append(pixels, s.engine.rgbaOf(f.Image))
		}
		return pixels
	}

	// Two runs against identical archive contents must be pixel-identical.
	assert.Equal(t, renderSequence(), renderSequence())
}
