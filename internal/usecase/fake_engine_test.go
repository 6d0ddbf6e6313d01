package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/adiack/geospatial-OB25D/internal/domain/port"
)

// fakeEngine is an in-memory raster engine with real pixel semantics on
// small grids. Pipeline tests run against it so threshold strictness,
// dilation growth and blend transparency are checked for real, not mocked.
type fakeEngine struct {
	archives    map[string]fakeArchive
	collections map[entity.CollectionRef][]fakeTile
	rasters     map[entity.RasterRef]fakeRaster
	nextColl    int
	nextRaster  int
	// metersPerPixel converts dilation radii to pixel space. 1 keeps the
	// numbers in tests readable.
	metersPerPixel float64
	width, height  int
}

type fakeArchive struct {
	bands map[string][]fakeTile
}

// fakeTile is one time-stamped raster tile. Tiles keep slice order as
// ingestion order.
type fakeTile struct {
	year  int
	attrs map[string]int64
	vals  []float64
	mask  []bool
}

// fakeRaster is either a numeric grid or, after visualization, an RGBA grid.
type fakeRaster struct {
	vals []float64
	mask []bool
	// rgba is set once visualized; alpha 0 means transparent.
	rgba [][4]uint8
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		archives:       map[string]fakeArchive{},
		collections:    map[entity.CollectionRef][]fakeTile{},
		rasters:        map[entity.RasterRef]fakeRaster{},
		metersPerPixel: 1,
		width:          4,
		height:         4,
	}
}

func (e *fakeEngine) addArchive(name, band string, tiles ...fakeTile) {
	a, ok := e.archives[name]
	if !ok {
		a = fakeArchive{bands: map[string][]fakeTile{}}
	}
	a.bands[band] = append(a.bands[band], tiles...)
	e.archives[name] = a
}

func (e *fakeEngine) newCollection(tiles []fakeTile) entity.CollectionRef {
	e.nextColl++
	ref := entity.CollectionRef(fmt.Sprintf("c%d", e.nextColl))
	e.collections[ref] = tiles
	return ref
}

func (e *fakeEngine) newRaster(r fakeRaster) entity.RasterRef {
	e.nextRaster++
	ref := entity.RasterRef(fmt.Sprintf("r%d", e.nextRaster))
	e.rasters[ref] = r
	return ref
}

func (e *fakeEngine) Collection(_ context.Context, archive, band string) (entity.CollectionRef, error) {
	a, ok := e.archives[archive]
	if !ok {
		return "", &entity.DataSourceError{Archive: archive, Band: band, Err: fmt.Errorf("archive not found")}
	}
	tiles, ok := a.bands[band]
	if !ok {
		return "", &entity.DataSourceError{Archive: archive, Band: band, Err: fmt.Errorf("band not found")}
	}
	return e.newCollection(tiles), nil
}

func (e *fakeEngine) Merge(_ context.Context, a, b entity.CollectionRef) (entity.CollectionRef, error) {
	merged := append(append([]fakeTile{}, e.collections[a]...), e.collections[b]...)
	return e.newCollection(merged), nil
}

func (e *fakeEngine) FilterYearRange(_ context.Context, c entity.CollectionRef, startYear, endYear int) (entity.CollectionRef, error) {
	var out []fakeTile
	for _, t := range e.collections[c] {
		if t.year >= startYear && t.year <= endYear {
			out = append(out, t)
		}
	}
	return e.newCollection(out), nil
}

func (e *fakeEngine) FilterEpoch(_ context.Context, c entity.CollectionRef, attribute string, epochSeconds int64) (entity.CollectionRef, error) {
	var out []fakeTile
	for _, t := range e.collections[c] {
		if v, ok := t.attrs[attribute]; ok && v == epochSeconds {
			out = append(out, t)
		}
	}
	return e.newCollection(out), nil
}

func (e *fakeEngine) Count(_ context.Context, c entity.CollectionRef) (int, error) {
	return len(e.collections[c]), nil
}

func (e *fakeEngine) First(_ context.Context, c entity.CollectionRef) (entity.RasterRef, error) {
	tiles := e.collections[c]
	if len(tiles) == 0 {
		return "", fmt.Errorf("first of empty collection")
	}
	t := tiles[0]
	return e.newRaster(fakeRaster{vals: append([]float64{}, t.vals...), mask: append([]bool{}, t.mask...)}), nil
}

func (e *fakeEngine) Mosaic(_ context.Context, c entity.CollectionRef) (entity.RasterRef, error) {
	n := e.width * e.height
	out := fakeRaster{vals: make([]float64, n), mask: make([]bool, n)}
	for _, t := range e.collections[c] {
		for i := 0; i < n; i++ {
			if !out.mask[i] && t.mask[i] {
				out.vals[i] = t.vals[i]
				out.mask[i] = true
			}
		}
	}
	return e.newRaster(out), nil
}

func (e *fakeEngine) Threshold(_ context.Context, r entity.RasterRef, gt float64) (entity.RasterRef, error) {
	in := e.rasters[r]
	out := fakeRaster{vals: make([]float64, len(in.vals)), mask: append([]bool{}, in.mask...)}
	for i, v := range in.vals {
		if in.mask[i] && v > gt {
			out.vals[i] = 1
		}
	}
	return e.newRaster(out), nil
}

func (e *fakeEngine) Dilate(_ context.Context, r entity.RasterRef, radiusMeters float64) (entity.RasterRef, error) {
	in := e.rasters[r]
	radius := radiusMeters / e.metersPerPixel
	out := fakeRaster{vals: append([]float64{}, in.vals...), mask: append([]bool{}, in.mask...)}
	for y := 0; y < e.height; y++ {
		for x := 0; x < e.width; x++ {
			if e.anySetWithin(in, x, y, radius) {
				i := y*e.width + x
				out.vals[i] = 1
				out.mask[i] = true
			}
		}
	}
	return e.newRaster(out), nil
}

func (e *fakeEngine) anySetWithin(r fakeRaster, cx, cy int, radius float64) bool {
	rr := int(math.Ceil(radius))
	for dy := -rr; dy <= rr; dy++ {
		for dx := -rr; dx <= rr; dx++ {
			if float64(dx*dx+dy*dy) > radius*radius {
				continue
			}
			x, y := cx+dx, cy+dy
			if x < 0 || x >= e.width || y < 0 || y >= e.height {
				continue
			}
			i := y*e.width + x
			if r.mask[i] && r.vals[i] != 0 {
				return true
			}
		}
	}
	return false
}

func (e *fakeEngine) SelfMask(_ context.Context, r entity.RasterRef) (entity.RasterRef, error) {
	in := e.rasters[r]
	out := fakeRaster{vals: append([]float64{}, in.vals...), mask: make([]bool, len(in.mask))}
	for i := range in.vals {
		out.mask[i] = in.mask[i] && in.vals[i] != 0
	}
	return e.newRaster(out), nil
}

func (e *fakeEngine) Visualize(_ context.Context, r entity.RasterRef, vis port.VisParams) (entity.RasterRef, error) {
	in := e.rasters[r]
	out := fakeRaster{rgba: make([][4]uint8, len(in.vals))}
	for i, v := range in.vals {
		if !in.mask[i] {
			continue // alpha stays 0
		}
		norm := (v - vis.Min) / (vis.Max - vis.Min)
		norm = math.Max(0, math.Min(1, norm))
		idx := int(math.Round(norm * float64(len(vis.Palette)-1)))
		c := parseHexColor(vis.Palette[idx])
		out.rgba[i] = [4]uint8{c[0], c[1], c[2], 255}
	}
	return e.newRaster(out), nil
}

func (e *fakeEngine) Blend(_ context.Context, base, top entity.RasterRef) (entity.RasterRef, error) {
	b, t := e.rasters[base], e.rasters[top]
	out := fakeRaster{rgba: make([][4]uint8, len(b.rgba))}
	for i := range b.rgba {
		if t.rgba[i][3] > 0 {
			out.rgba[i] = t.rgba[i]
		} else {
			out.rgba[i] = b.rgba[i]
		}
	}
	return e.newRaster(out), nil
}

func parseHexColor(s string) [3]uint8 {
	var c [3]uint8
	fmt.Sscanf(s, "%02x%02x%02x", &c[0], &c[1], &c[2])
	return c
}

// rgbaOf renders a raster handle to raw pixels for assertions.
func (e *fakeEngine) rgbaOf(r entity.RasterRef) [][4]uint8 {
	return e.rasters[r].rgba
}

// uniformTile builds a fully valid tile with one value everywhere.
func (e *fakeEngine) uniformTile(year int, attrs map[string]int64, val float64) fakeTile {
	n := e.width * e.height
	vals := make([]float64, n)
	mask := make([]bool, n)
	for i := range vals {
		vals[i] = val
		mask[i] = true
	}
	return fakeTile{year: year, attrs: attrs, vals: vals, mask: mask}
}

// spotTile builds a fully valid tile with background zero and a single
// nonzero pixel at (x, y).
func (e *fakeEngine) spotTile(year int, attrs map[string]int64, x, y int, val float64) fakeTile {
	t := e.uniformTile(year, attrs, 0)
	t.vals[y*e.width+x] = val
	return t
}
