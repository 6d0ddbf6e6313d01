package usecase

import (
	"context"
	"fmt"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/adiack/geospatial-OB25D/internal/domain/port"
	"github.com/adiack/geospatial-OB25D/internal/infra/metrics"
	"go.uber.org/zap"
)

// CompositorConfig is the visualization configuration for one run. It is
// passed in explicitly so tests can vary thresholds and radii without any
// shared state.
type CompositorConfig struct {
	// Threshold is the building-presence probability above which a pixel
	// counts as built. Strictly greater than; a pixel exactly at the
	// threshold is not marked present.
	Threshold float64
	// DilateRadiusMeters inflates the binary mask so sparse detections stay
	// legible at map scale. This overstates footprint extent on purpose; it
	// is a visualization choice, not a geometric claim.
	DilateRadiusMeters float64
	LightsVis          port.VisParams
	BuildingsVis       port.VisParams
}

// FrameCompositor produces one blended RGB frame per year: the annual lights
// composite underneath, the thresholded and inflated building mask on top.
type FrameCompositor struct {
	engine port.RasterEngine
	cfg    CompositorConfig
	logger *zap.Logger
}

func NewFrameCompositor(engine port.RasterEngine, cfg CompositorConfig, logger *zap.Logger) *FrameCompositor {
	return &FrameCompositor{engine: engine, cfg: cfg, logger: logger}
}

// ComposeFrame builds the frame for one temporal key. A year with no
// building tiles degrades to a lights-only frame: the empty collection
// mosaics to a fully masked raster, which self-masking keeps fully
// transparent through the blend. A year with no lights tile is fatal and
// returns *entity.MissingDataError.
func (c *FrameCompositor) ComposeFrame(ctx context.Context, datasets ResolvedDatasets, key TemporalKey, epochAttr string) (entity.Frame, error) {
	buildings, err := c.engine.FilterEpoch(ctx, datasets.Buildings, epochAttr, key.BuildingEpoch)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("filter buildings for %d: %w", key.Year, err)
	}

	matched, err := c.engine.Count(ctx, buildings)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("count buildings for %d: %w", key.Year, err)
	}
	if matched == 0 {
		c.logger.Info("no building data for year, degrading to lights-only frame",
			zap.Int("year", key.Year))
		metrics.LightsOnlyFramesTotal.Inc()
	}

	mosaic, err := c.engine.Mosaic(ctx, buildings)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("mosaic buildings for %d: %w", key.Year, err)
	}

	mask, err := c.engine.Threshold(ctx, mosaic, c.cfg.Threshold)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("threshold buildings for %d: %w", key.Year, err)
	}
	if c.cfg.DilateRadiusMeters > 0 {
		mask, err = c.engine.Dilate(ctx, mask, c.cfg.DilateRadiusMeters)
		if err != nil {
			return entity.Frame{}, fmt.Errorf("dilate buildings for %d: %w", key.Year, err)
		}
	}
	mask, err = c.engine.SelfMask(ctx, mask)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("self-mask buildings for %d: %w", key.Year, err)
	}
	buildingsRGB, err := c.engine.Visualize(ctx, mask, c.cfg.BuildingsVis)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("visualize buildings for %d: %w", key.Year, err)
	}

	lights, err := c.engine.FilterYearRange(ctx, datasets.Lights, key.LightsStartYear, key.LightsEndYear)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("filter lights for %d: %w", key.Year, err)
	}
	n, err := c.engine.Count(ctx, lights)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("count lights for %d: %w", key.Year, err)
	}
	if n == 0 {
		return entity.Frame{}, &entity.MissingDataError{Year: key.Year}
	}
	// More than one annual composite can match the range filter; the first
	// tile by ingestion order is the representative one.
	tile, err := c.engine.First(ctx, lights)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("take lights tile for %d: %w", key.Year, err)
	}
	lightsRGB, err := c.engine.Visualize(ctx, tile, c.cfg.LightsVis)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("visualize lights for %d: %w", key.Year, err)
	}

	blended, err := c.engine.Blend(ctx, lightsRGB, buildingsRGB)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("blend layers for %d: %w", key.Year, err)
	}

	metrics.FramesCompositedTotal.Inc()
	return entity.Frame{Year: key.Year, Image: blended}, nil
}
