package port

import (
	"context"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
)

// VisParams maps a numeric band through a value range and color ramp into
// 3-channel color.
type VisParams struct {
	Min     float64
	Max     float64
	Palette []string
}

// RasterEngine is the hosted raster query service. All operations are
// declarative transforms over opaque handles; the service performs the
// numeric raster math remotely and this process only plumbs references.
type RasterEngine interface {
	// Collection resolves a named archive to a collection handle scoped to a
	// single band. A missing archive or band yields *entity.DataSourceError.
	Collection(ctx context.Context, archive, band string) (entity.CollectionRef, error)

	// Merge concatenates two collections into one logical collection, in
	// argument order, without re-sorting or deduplication.
	Merge(ctx context.Context, a, b entity.CollectionRef) (entity.CollectionRef, error)

	// FilterYearRange keeps tiles whose calendar year lies in [startYear, endYear],
	// inclusive on both ends.
	FilterYearRange(ctx context.Context, c entity.CollectionRef, startYear, endYear int) (entity.CollectionRef, error)

	// FilterEpoch keeps tiles whose named attribute equals the exact
	// epoch-seconds value.
	FilterEpoch(ctx context.Context, c entity.CollectionRef, attribute string, epochSeconds int64) (entity.CollectionRef, error)

	// Count reports how many tiles the collection currently matches.
	Count(ctx context.Context, c entity.CollectionRef) (int, error)

	// First returns the first tile by ingestion order. It is the resolution
	// rule when a year-range filter matches more than one lights tile.
	First(ctx context.Context, c entity.CollectionRef) (entity.RasterRef, error)

	// Mosaic composites all tiles into one raster, first valid pixel wins.
	// An empty collection mosaics to a fully masked raster, not an error.
	Mosaic(ctx context.Context, c entity.CollectionRef) (entity.RasterRef, error)

	// Threshold produces a binary raster: 1 where the pixel value is strictly
	// greater than gt, 0 elsewhere. Masked pixels stay masked.
	Threshold(ctx context.Context, r entity.RasterRef, gt float64) (entity.RasterRef, error)

	// Dilate grows the nonzero region outward by radiusMeters using a
	// disk-shaped kernel. Radius zero is the identity.
	Dilate(ctx context.Context, r entity.RasterRef, radiusMeters float64) (entity.RasterRef, error)

	// SelfMask hides pixels whose own value is zero.
	SelfMask(ctx context.Context, r entity.RasterRef) (entity.RasterRef, error)

	// Visualize maps the raster through the value range and palette into RGB.
	// Masked pixels stay transparent.
	Visualize(ctx context.Context, r entity.RasterRef, vis VisParams) (entity.RasterRef, error)

	// Blend alpha-composites top over base; transparent top pixels show base.
	Blend(ctx context.Context, base, top entity.RasterRef) (entity.RasterRef, error)
}
