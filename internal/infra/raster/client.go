package raster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adiack/geospatial-OB25D/internal/domain/entity"
	"github.com/adiack/geospatial-OB25D/internal/domain/port"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const collectionCacheSize = 64

// Client talks to the hosted raster engine over its JSON API. Every call
// returns an opaque handle; pixel math stays on the engine side. Archive
// resolution is memoized because the same two lights archives and one
// buildings archive are re-resolved on every pipeline run.
type Client struct {
	baseURL    string
	httpClient *http.Client
	collCache  *lru.Cache[string, entity.CollectionRef]
	logger     *zap.Logger
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	cache, err := lru.New[string, entity.CollectionRef](collectionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create collection cache: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		collCache:  cache,
		logger:     logger,
	}, nil
}

type collectionResponse struct {
	CollectionID string `json:"collection_id"`
}

type rasterResponse struct {
	RasterID string `json:"raster_id"`
}

type countResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Collection(ctx context.Context, archive, band string) (entity.CollectionRef, error) {
	cacheKey := archive + "|" + band
	if ref, ok := c.collCache.Get(cacheKey); ok {
		return ref, nil
	}

	var out collectionResponse
	status, err := c.postJSON(ctx, "/v1/collections", map[string]string{
		"archive": archive,
		"band":    band,
	}, &out)
	if err != nil {
		if status == http.StatusNotFound || status == http.StatusUnprocessableEntity {
			return "", &entity.DataSourceError{Archive: archive, Band: band, Err: err}
		}
		return "", fmt.Errorf("resolve collection %q: %w", archive, err)
	}

	ref := entity.CollectionRef(out.CollectionID)
	c.collCache.Add(cacheKey, ref)
	return ref, nil
}

func (c *Client) Merge(ctx context.Context, a, b entity.CollectionRef) (entity.CollectionRef, error) {
	var out collectionResponse
	_, err := c.postJSON(ctx, "/v1/collections/merge", map[string]string{
		"first":  string(a),
		"second": string(b),
	}, &out)
	if err != nil {
		return "", fmt.Errorf("merge collections: %w", err)
	}
	return entity.CollectionRef(out.CollectionID), nil
}

func (c *Client) FilterYearRange(ctx context.Context, coll entity.CollectionRef, startYear, endYear int) (entity.CollectionRef, error) {
	var out collectionResponse
	_, err := c.postJSON(ctx, fmt.Sprintf("/v1/collections/%s/filter", coll), map[string]any{
		"type":       "year_range",
		"start_year": startYear,
		"end_year":   endYear,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("filter year range: %w", err)
	}
	return entity.CollectionRef(out.CollectionID), nil
}

func (c *Client) FilterEpoch(ctx context.Context, coll entity.CollectionRef, attribute string, epochSeconds int64) (entity.CollectionRef, error) {
	var out collectionResponse
	_, err := c.postJSON(ctx, fmt.Sprintf("/v1/collections/%s/filter", coll), map[string]any{
		"type":      "attribute_eq",
		"attribute": attribute,
		"value":     epochSeconds,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("filter epoch: %w", err)
	}
	return entity.CollectionRef(out.CollectionID), nil
}

func (c *Client) Count(ctx context.Context, coll entity.CollectionRef) (int, error) {
	var out countResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/collections/%s/count", coll), &out); err != nil {
		return 0, fmt.Errorf("count collection: %w", err)
	}
	return out.Count, nil
}

func (c *Client) First(ctx context.Context, coll entity.CollectionRef) (entity.RasterRef, error) {
	var out rasterResponse
	_, err := c.postJSON(ctx, fmt.Sprintf("/v1/collections/%s/first", coll), nil, &out)
	if err != nil {
		return "", fmt.Errorf("first tile: %w", err)
	}
	return entity.RasterRef(out.RasterID), nil
}

func (c *Client) Mosaic(ctx context.Context, coll entity.CollectionRef) (entity.RasterRef, error) {
	var out rasterResponse
	_, err := c.postJSON(ctx, fmt.Sprintf("/v1/collections/%s/mosaic", coll), nil, &out)
	if err != nil {
		return "", fmt.Errorf("mosaic: %w", err)
	}
	return entity.RasterRef(out.RasterID), nil
}

func (c *Client) Threshold(ctx context.Context, r entity.RasterRef, gt float64) (entity.RasterRef, error) {
	var out rasterResponse
	_, err := c.postJSON(ctx, fmt.Sprintf("/v1/rasters/%s/threshold", r), map[string]float64{"gt": gt}, &out)
	if err != nil {
		return "", fmt.Errorf("threshold: %w", err)
	}
	return entity.RasterRef(out.RasterID), nil
}

func (c *Client) Dilate(ctx context.Context, r entity.RasterRef, radiusMeters float64) (entity.RasterRef, error) {
	var out rasterResponse
	_, err := c.postJSON(ctx, fmt.Sprintf("/v1/rasters/%s/dilate", r), map[string]any{
		"radius_meters": radiusMeters,
		"kernel":        "disk",
	}, &out)
	if err != nil {
		return "", fmt.Errorf("dilate: %w", err)
	}
	return entity.RasterRef(out.RasterID), nil
}

func (c *Client) SelfMask(ctx context.Context, r entity.RasterRef) (entity.RasterRef, error) {
	var out rasterResponse
	_, err := c.postJSON(ctx, fmt.Sprintf("/v1/rasters/%s/selfmask", r), nil, &out)
	if err != nil {
		return "", fmt.Errorf("self-mask: %w", err)
	}
	return entity.RasterRef(out.RasterID), nil
}

func (c *Client) Visualize(ctx context.Context, r entity.RasterRef, vis port.VisParams) (entity.RasterRef, error) {
	var out rasterResponse
	_, err := c.postJSON(ctx, fmt.Sprintf("/v1/rasters/%s/visualize", r), map[string]any{
		"min":     vis.Min,
		"max":     vis.Max,
		"palette": vis.Palette,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("visualize: %w", err)
	}
	return entity.RasterRef(out.RasterID), nil
}

func (c *Client) Blend(ctx context.Context, base, top entity.RasterRef) (entity.RasterRef, error) {
	var out rasterResponse
	_, err := c.postJSON(ctx, "/v1/rasters/blend", map[string]string{
		"base": string(base),
		"top":  string(top),
	}, &out)
	if err != nil {
		return "", fmt.Errorf("blend: %w", err)
	}
	return entity.RasterRef(out.RasterID), nil
}

// postJSON issues a POST and decodes the response into out. It returns the
// HTTP status alongside the error so callers can map engine-side misses to
// domain errors.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("raster engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, c.decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("raster engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) decodeError(resp *http.Response) error {
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("engine returned %d: %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("engine returned %d", resp.StatusCode)
}
