package http

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/ocean-map-engine/internal/domain"
	"github.com/couchcryptid/ocean-map-engine/internal/engine"
	"github.com/couchcryptid/ocean-map-engine/internal/rowset"
)

// maxRequestBytes bounds inline row payloads. A full dataset at the row cap
// is well under this.
const maxRequestBytes = 16 << 20

// datasetRef names a resident dataset.
type datasetRef struct {
	Area  string `json:"area"`
	Model string `json:"model"`
}

// productRequest is the common part of every product request. Inline rows
// take precedence over a dataset reference; inline requests bypass the
// product cache since there is no version to key on.
type productRequest struct {
	Dataset *datasetRef  `json:"dataset,omitempty"`
	Rows    []domain.Row `json:"rows,omitempty"`
}

type heatmapRequest struct {
	productRequest
	Attribute      string   `json:"attribute"`
	IntensityScale float64  `json:"intensity_scale"`
	Normalize      bool     `json:"normalize"`
	GridResolution float64  `json:"grid_resolution"`
	DepthFilter    *float64 `json:"depth_filter"`
}

type heatmapResponse struct {
	Attribute string                `json:"attribute"`
	Count     int                   `json:"count"`
	Points    []domain.HeatmapPoint `json:"points"`
}

type vectorsRequest struct {
	productRequest
	DisplayParameter string   `json:"display_parameter"`
	VectorScale      float64  `json:"vector_scale"`
	MinMagnitude     float64  `json:"min_magnitude"`
	ColorBy          string   `json:"color_by"`
	MaxVectors       int      `json:"max_vectors"`
	DepthFilter      *float64 `json:"depth_filter"`
	GridResolution   float64  `json:"grid_resolution"`
}

type vectorsResponse struct {
	Features   *geojson.FeatureCollection `json:"features"`
	Meta       domain.VectorFieldMeta     `json:"meta"`
	ColorScale domain.ColorScale          `json:"color_scale"`
}

type stationsRequest struct {
	productRequest
	Exact bool `json:"exact"`
}

type stationsResponse struct {
	Count    int              `json:"count"`
	Stations []domain.Station `json:"stations"`
}

type validationRequest struct {
	productRequest
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	var req heatmapRequest
	body, ok := s.decodeRequest(w, r, "heatmap", &req)
	if !ok {
		return
	}
	rows, cacheKey, ok := s.resolveRows(w, "heatmap", req.productRequest, body)
	if !ok {
		return
	}
	if s.serveCached(w, cacheKey) {
		return
	}

	attribute := req.Attribute
	if attribute == "" {
		attribute = domain.KeyTemperature
	}

	var resp heatmapResponse
	err := s.runner.Do(r.Context(), "heatmap", func(_ context.Context) error {
		points := domain.GenerateHeatmap(rows, attribute, domain.HeatmapOptions{
			IntensityScale: req.IntensityScale,
			Normalize:      req.Normalize,
			GridResolution: req.GridResolution,
			DepthFilter:    req.DepthFilter,
		})
		resp = heatmapResponse{Attribute: attribute, Count: len(points), Points: points}
		return nil
	})
	if err != nil {
		s.writeBuildError(w, "heatmap", err)
		return
	}

	s.cache.put(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVectors(w http.ResponseWriter, r *http.Request) {
	var req vectorsRequest
	body, ok := s.decodeRequest(w, r, "vectors", &req)
	if !ok {
		return
	}
	rows, cacheKey, ok := s.resolveRows(w, "vectors", req.productRequest, body)
	if !ok {
		return
	}
	if s.serveCached(w, cacheKey) {
		return
	}

	var resp vectorsResponse
	err := s.runner.Do(r.Context(), "vectors", func(_ context.Context) error {
		field := domain.GenerateVectorGeometry(rows, domain.GeometryOptions{
			DisplayParameter: req.DisplayParameter,
			VectorScale:      req.VectorScale,
			MinMagnitude:     req.MinMagnitude,
			ColorBy:          req.ColorBy,
			MaxVectors:       req.MaxVectors,
			DepthFilter:      req.DepthFilter,
			GridResolution:   req.GridResolution,
		})

		series := []float64{field.Meta.ColorRange.Min, field.Meta.ColorRange.Max}
		if field.Meta.Count == 0 {
			series = nil
		}
		resp = vectorsResponse{
			Features:   field.Features,
			Meta:       field.Meta,
			ColorScale: domain.BuildColorScale(series, field.Meta.ColorBy),
		}
		return nil
	})
	if err != nil {
		s.writeBuildError(w, "vectors", err)
		return
	}

	s.cache.put(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	var req stationsRequest
	body, ok := s.decodeRequest(w, r, "stations", &req)
	if !ok {
		return
	}
	rows, cacheKey, ok := s.resolveRows(w, "stations", req.productRequest, body)
	if !ok {
		return
	}
	if s.serveCached(w, cacheKey) {
		return
	}

	var resp stationsResponse
	err := s.runner.Do(r.Context(), "stations", func(_ context.Context) error {
		var stations []domain.Station
		if req.Exact {
			stations = domain.ClusterStationsExact(rows)
		} else {
			stations = domain.ClusterStations(rows)
		}
		resp = stationsResponse{Count: len(stations), Stations: stations}
		return nil
	})
	if err != nil {
		s.writeBuildError(w, "stations", err)
		return
	}

	s.cache.put(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	var req validationRequest
	body, ok := s.decodeRequest(w, r, "validation", &req)
	if !ok {
		return
	}
	rows, cacheKey, ok := s.resolveRows(w, "validation", req.productRequest, body)
	if !ok {
		return
	}
	if s.serveCached(w, cacheKey) {
		return
	}

	var report domain.CoordinateReport
	err := s.runner.Do(r.Context(), "validation", func(_ context.Context) error {
		report = domain.ValidateCoordinates(rows)
		return nil
	})
	if err != nil {
		s.writeBuildError(w, "validation", err)
		return
	}

	s.cache.put(cacheKey, report)
	writeJSON(w, http.StatusOK, report)
}

// decodeRequest reads and parses the request body, returning the raw bytes
// for cache keying.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, product string, v any) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.metrics.ProductErrors.WithLabelValues(product).Inc()
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return nil, false
	}
	if err := unmarshalStrictBody(body, v); err != nil {
		s.metrics.ProductErrors.WithLabelValues(product).Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return body, true
}

// resolveRows picks the input rows for a product request. Inline rows win;
// otherwise the referenced dataset is snapshotted and the response becomes
// cacheable under its version.
func (s *Server) resolveRows(w http.ResponseWriter, product string, req productRequest, body []byte) ([]domain.Row, string, bool) {
	if len(req.Rows) > 0 {
		s.metrics.RowsPerRequest.Observe(float64(len(req.Rows)))
		return req.Rows, "", true
	}

	if req.Dataset != nil {
		snap, ok := s.store.Get(rowset.Key{Area: req.Dataset.Area, Model: req.Dataset.Model})
		if !ok {
			s.metrics.ProductErrors.WithLabelValues(product).Inc()
			writeError(w, http.StatusNotFound,
				fmt.Sprintf("dataset %s/%s not found", req.Dataset.Area, req.Dataset.Model))
			return nil, "", false
		}
		s.metrics.RowsPerRequest.Observe(float64(len(snap.Rows)))
		return snap.Rows, cacheKeyFor(product, snap.Version, body), true
	}

	s.metrics.ProductErrors.WithLabelValues(product).Inc()
	err := domain.InvalidInputError("rows", "either rows or dataset must be provided")
	writeError(w, http.StatusBadRequest, err.Error())
	return nil, "", false
}

// serveCached writes the cached product if present. Inline-row requests carry
// an empty key and always miss.
func (s *Server) serveCached(w http.ResponseWriter, cacheKey string) bool {
	if cacheKey == "" {
		return false
	}
	if cached, ok := s.cache.get(cacheKey); ok {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		writeJSON(w, http.StatusOK, cached)
		return true
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	return false
}

func (s *Server) writeBuildError(w http.ResponseWriter, product string, err error) {
	switch {
	case errors.Is(err, engine.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "server is busy, retry later")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("product build failed", "product", product, "error", err)
		writeError(w, http.StatusInternalServerError, "product build failed")
	}
}

// unmarshalStrictBody parses a JSON request body, rejecting empty bodies.
func unmarshalStrictBody(body []byte, v any) error {
	if len(body) == 0 {
		return domain.InvalidInputError("body", "request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// cacheKeyFor derives a product cache key from the product name, the dataset
// version, and a digest of the raw request body.
func cacheKeyFor(product string, version uint64, body []byte) string {
	digest := sha256.Sum256(body)
	return fmt.Sprintf("%s|%d|%x", product, version, digest[:8])
}
