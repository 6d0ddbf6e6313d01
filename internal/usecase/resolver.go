package usecase

import (
	"context"
	"fmt"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/adiack/geospatial-OB25D/internal/domain/port"
)

// DatasetConfig names the raw archives the pipeline reads. The nighttime
// lights record is split across two archive generations: archive A covers
// years before CutoverYear, archive B covers CutoverYear onward. Both carry
// LightsBand as their shared measurement band.
type DatasetConfig struct {
	LightsArchiveA   string
	LightsArchiveB   string
	CutoverYear      int
	LightsBand       string
	BuildingsArchive string
	BuildingsBand    string
	// BuildingsEpochAttr is the tile attribute holding the precomputed
	// epoch-seconds key.
	BuildingsEpochAttr string
}

func (c DatasetConfig) Validate() error {
	if c.LightsArchiveA == "" || c.LightsArchiveB == "" || c.BuildingsArchive == "" {
		return fmt.Errorf("dataset config: archive names must not be empty")
	}
	if c.LightsArchiveA == c.LightsArchiveB {
		return fmt.Errorf("dataset config: lights archives A and B are both %q; their time ranges would overlap", c.LightsArchiveA)
	}
	if c.CutoverYear <= 0 {
		return fmt.Errorf("dataset config: cutover year must be set")
	}
	if c.LightsBand == "" || c.BuildingsBand == "" {
		return fmt.Errorf("dataset config: band names must not be empty")
	}
	return nil
}

// ResolvedDatasets holds the query-ready collection handles for one run.
// Handles are stateless and can be re-resolved at any time.
type ResolvedDatasets struct {
	Lights    entity.CollectionRef
	Buildings entity.CollectionRef
}

// DatasetResolver unifies the raw archives into two queryable collections.
// No temporal filtering happens here; this stage only establishes scope.
type DatasetResolver struct {
	engine port.RasterEngine
}

func NewDatasetResolver(engine port.RasterEngine) *DatasetResolver {
	return &DatasetResolver{engine: engine}
}

// Resolve concatenates lights archive A then B on the shared band, in that
// order, without re-sorting or deduplication. The archives must cover
// disjoint, sequential year ranges split at the cutover year; the engine
// cannot see archive holdings, so beyond Validate the ordering is the
// caller's configuration contract. Either archive or band missing fails the
// whole resolution; no partial collection is returned.
func (r *DatasetResolver) Resolve(ctx context.Context, cfg DatasetConfig) (ResolvedDatasets, error) {
	if err := cfg.Validate(); err != nil {
		return ResolvedDatasets{}, err
	}

	lightsA, err := r.engine.Collection(ctx, cfg.LightsArchiveA, cfg.LightsBand)
	if err != nil {
		return ResolvedDatasets{}, err
	}
	lightsB, err := r.engine.Collection(ctx, cfg.LightsArchiveB, cfg.LightsBand)
	if err != nil {
		return ResolvedDatasets{}, err
	}
	lights, err := r.engine.Merge(ctx, lightsA, lightsB)
	if err != nil {
		return ResolvedDatasets{}, fmt.Errorf("merge lights archives: %w", err)
	}

	buildings, err := r.engine.Collection(ctx, cfg.BuildingsArchive, cfg.BuildingsBand)
	if err != nil {
		return ResolvedDatasets{}, err
	}

	return ResolvedDatasets{Lights: lights, Buildings: buildings}, nil
}
