package domain

import (
	"math"
	"sort"
	"time"
)

// depthTolerance is the fixed half-window, in depth units, applied when a
// depth filter is requested. Sensor depths jitter between casts; exact
// matching would discard nearly everything.
const depthTolerance = 5.0

// latestOnlyPrecision is the coordinate rounding, in decimal places, used
// when reducing to one row per location.
const latestOnlyPrecision = 4

// defaultGridResolution is used when a caller asks for gridding without
// specifying a cell size.
const defaultGridResolution = 0.1

// ScalarOptions controls ProcessScalar filtering.
type ScalarOptions struct {
	// DepthFilter, when set, keeps only rows within depthTolerance of it.
	DepthFilter *float64

	// LatestOnly reduces output to one row per 4-decimal-rounded coordinate,
	// keeping the most recent.
	LatestOnly bool

	// MaxPoints, when positive, keeps only the most recent MaxPoints rows.
	MaxPoints int
}

// ScalarPoint is one surviving sample of a named scalar attribute. Depth is 0
// when the source row carried no depth field.
type ScalarPoint struct {
	Lat   float64   `json:"lat"`
	Lon   float64   `json:"lon"`
	Value float64   `json:"value"`
	Time  time.Time `json:"time"`
	Depth float64   `json:"depth"`
}

// HeatmapOptions controls GenerateHeatmap.
type HeatmapOptions struct {
	// IntensityScale multiplies raw cell averages in the non-normalized
	// branch. Zero means 1.
	IntensityScale float64

	// Normalize maps cell averages onto [0,1] via the global min/max.
	Normalize bool

	// GridResolution is the cell size in degrees. Zero or negative means
	// defaultGridResolution.
	GridResolution float64

	// DepthFilter, when set, keeps only rows within depthTolerance of it.
	DepthFilter *float64
}

// HeatmapPoint is a [lat, lon, intensity] triple with intensity in [0,1].
type HeatmapPoint [3]float64

// ProcessScalar filters and orders rows carrying the named scalar attribute.
// Rows lacking valid coordinates or the attribute are dropped; missing depth
// only matters when a depth filter is requested. Output is ascending by time.
func ProcessScalar(rows []Row, attribute string, opts ScalarOptions) []ScalarPoint {
	points := make([]ScalarPoint, 0, len(rows))
	for _, row := range rows {
		geo, ok := row.Coordinates()
		if !ok {
			continue
		}
		value, ok := row.Float(attribute)
		if !ok {
			continue
		}
		depth, hasDepth := row.Float(KeyDepth)
		if opts.DepthFilter != nil {
			if !hasDepth || math.Abs(depth-*opts.DepthFilter) > depthTolerance {
				continue
			}
		}
		points = append(points, ScalarPoint{
			Lat:   geo.Lat,
			Lon:   geo.Lon,
			Value: value,
			Time:  row.observedAt(),
			Depth: depth,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	if opts.LatestOnly {
		points = latestPerLocation(points)
	}
	if opts.MaxPoints > 0 && len(points) > opts.MaxPoints {
		points = points[len(points)-opts.MaxPoints:]
	}
	return points
}

// latestPerLocation keeps the most recent point per 4-decimal-rounded
// coordinate. Input must be sorted ascending by time; relative order of the
// survivors is preserved.
func latestPerLocation(points []ScalarPoint) []ScalarPoint {
	type locKey struct{ lat, lon float64 }
	latest := make(map[locKey]int, len(points))
	for i, p := range points {
		key := locKey{
			lat: roundTo(p.Lat, latestOnlyPrecision),
			lon: roundTo(p.Lon, latestOnlyPrecision),
		}
		latest[key] = i
	}

	reduced := make([]ScalarPoint, 0, len(latest))
	for i, p := range points {
		if latest[locKey{roundTo(p.Lat, latestOnlyPrecision), roundTo(p.Lon, latestOnlyPrecision)}] == i {
			reduced = append(reduced, p)
		}
	}
	return reduced
}

// GenerateHeatmap buckets surviving rows into grid cells, averages the
// attribute per cell, and emits one [lat, lon, intensity] triple per cell.
// With Normalize set, intensity is the cell average's position within the
// global min/max, clamped to [0,1]; when the range is degenerate (max == min)
// it falls back to the scaled branch. Empty input yields empty output.
// Output is ordered by cell latitude, then longitude, so repeated calls over
// identical input produce identical slices.
func GenerateHeatmap(rows []Row, attribute string, opts HeatmapOptions) []HeatmapPoint {
	points := ProcessScalar(rows, attribute, ScalarOptions{DepthFilter: opts.DepthFilter})
	if len(points) == 0 {
		return []HeatmapPoint{}
	}

	resolution := opts.GridResolution
	if resolution <= 0 {
		resolution = defaultGridResolution
	}
	scale := opts.IntensityScale
	if scale == 0 {
		scale = 1
	}

	type cellAccum struct {
		sum   float64
		count int
	}
	cells := make(map[gridKey]*cellAccum)
	for _, p := range points {
		key := cellFor(p.Lat, p.Lon, resolution)
		acc, ok := cells[key]
		if !ok {
			acc = &cellAccum{}
			cells[key] = acc
		}
		acc.sum += p.Value
		acc.count++
	}

	averages := make(map[gridKey]float64, len(cells))
	globalMin := math.Inf(1)
	globalMax := math.Inf(-1)
	for key, acc := range cells {
		avg := acc.sum / float64(acc.count)
		averages[key] = avg
		globalMin = math.Min(globalMin, avg)
		globalMax = math.Max(globalMax, avg)
	}

	normalize := opts.Normalize && globalMax > globalMin

	out := make([]HeatmapPoint, 0, len(averages))
	for key, avg := range averages {
		var intensity float64
		if normalize {
			intensity = (avg - globalMin) / (globalMax - globalMin)
		} else {
			intensity = avg * scale
		}
		out = append(out, HeatmapPoint{key.lat, key.lon, clamp01(intensity)})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// gridKey identifies one grid cell by its rounded anchor coordinate.
type gridKey struct {
	lat float64
	lon float64
}

// cellFor maps a coordinate to its grid cell anchor at the given resolution.
func cellFor(lat, lon, resolution float64) gridKey {
	return gridKey{
		lat: math.Round(lat/resolution) * resolution,
		lon: math.Round(lon/resolution) * resolution,
	}
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
