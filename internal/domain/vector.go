package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// defaultVectorScale converts magnitude into arrow length in degrees when the
// caller does not supply a scale.
const defaultVectorScale = 0.1

// VectorOptions controls ProcessVector.
type VectorOptions struct {
	// MagnitudeKey and DirectionKey name the paired row fields. A row
	// qualifies only when BOTH parse to finite numbers; this is stricter
	// than the scalar processor on purpose, since a magnitude without a
	// bearing cannot be rendered as an arrow.
	MagnitudeKey string
	DirectionKey string

	// DepthFilter, when set, keeps only rows within depthTolerance of it.
	DepthFilter *float64

	// GridResolution, when positive, aggregates rows per grid cell:
	// circular mean for direction, arithmetic mean for magnitude and depth,
	// most recent member for time.
	GridResolution float64

	// LatestOnly reduces to one record per 4-decimal-rounded coordinate,
	// applied after grid aggregation.
	LatestOnly bool

	// MaxPoints, when positive, keeps only the most recent MaxPoints records.
	MaxPoints int
}

// VectorPoint is one renderable direction/magnitude sample. Direction is
// degrees clockwise from north; VectorX/VectorY are the east/north components
// of its unit vector. Depth is 0 when the source row carried no depth field;
// grid aggregation averages depth over only the cell members that had one.
type VectorPoint struct {
	ID        string    `json:"id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Direction float64   `json:"direction"`
	Magnitude float64   `json:"magnitude"`
	Time      time.Time `json:"time"`
	Depth     float64   `json:"depth"`
	VectorX   float64   `json:"vector_x"`
	VectorY   float64   `json:"vector_y"`

	depthKnown bool
}

// ProcessVector filters, optionally grid-aggregates, and orders rows carrying
// a paired magnitude/direction attribute. Output is ascending by time, with
// coordinate tie-breaks so repeated calls over identical input produce
// identical slices.
func ProcessVector(rows []Row, opts VectorOptions) []VectorPoint {
	points := make([]VectorPoint, 0, len(rows))
	for _, row := range rows {
		geo, ok := row.Coordinates()
		if !ok {
			continue
		}
		magnitude, ok := row.Float(opts.MagnitudeKey)
		if !ok {
			continue
		}
		direction, ok := row.Float(opts.DirectionKey)
		if !ok {
			continue
		}
		depth, hasDepth := row.Float(KeyDepth)
		if opts.DepthFilter != nil {
			if !hasDepth || math.Abs(depth-*opts.DepthFilter) > depthTolerance {
				continue
			}
		}
		p := newVectorPoint(geo.Lat, geo.Lon, direction, magnitude, depth, row.observedAt())
		p.depthKnown = hasDepth
		points = append(points, p)
	}

	if opts.GridResolution > 0 {
		points = aggregateVectorCells(points, opts.GridResolution)
	}

	// Ties on time fall back to coordinates so grid-aggregated output keeps a
	// stable order across calls.
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].Time.Equal(points[j].Time) {
			return points[i].Time.Before(points[j].Time)
		}
		if points[i].Lat != points[j].Lat {
			return points[i].Lat < points[j].Lat
		}
		return points[i].Lon < points[j].Lon
	})

	if opts.LatestOnly {
		points = latestVectorPerLocation(points)
	}
	if opts.MaxPoints > 0 && len(points) > opts.MaxPoints {
		points = points[len(points)-opts.MaxPoints:]
	}
	return points
}

// newVectorPoint derives the unit-vector components and deterministic ID for
// one sample. Direction is normalized to [0, 360).
func newVectorPoint(lat, lon, direction, magnitude, depth float64, t time.Time) VectorPoint {
	direction = normalizeDegrees(direction)
	rad := direction * math.Pi / 180
	return VectorPoint{
		ID:        vectorPointID(lat, lon, t, magnitude),
		Lat:       lat,
		Lon:       lon,
		Direction: direction,
		Magnitude: magnitude,
		Time:      t,
		Depth:     depth,
		VectorX:   math.Sin(rad),
		VectorY:   math.Cos(rad),
	}
}

// vectorPointID produces a deterministic ID from the sample's key fields, so
// repeated queries over the same rows yield stable feature identities.
func vectorPointID(lat, lon float64, t time.Time, magnitude float64) string {
	input := fmt.Sprintf("%.6f|%.6f|%d|%g", lat, lon, t.UnixNano(), magnitude)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}

// aggregateVectorCells reduces samples sharing a grid cell to one record:
// direction via circular mean, magnitude via arithmetic mean, depth via
// arithmetic mean over the members that had one, time from the most recent
// member. The output coordinate is the cell anchor.
func aggregateVectorCells(points []VectorPoint, resolution float64) []VectorPoint {
	type cellAccum struct {
		sinSum, cosSum float64
		magSum, depSum float64
		count, depths  int
		latest         time.Time
	}

	cells := make(map[gridKey]*cellAccum)
	for _, p := range points {
		key := cellFor(p.Lat, p.Lon, resolution)
		acc, ok := cells[key]
		if !ok {
			acc = &cellAccum{}
			cells[key] = acc
		}
		acc.sinSum += p.VectorX
		acc.cosSum += p.VectorY
		acc.magSum += p.Magnitude
		if p.depthKnown {
			acc.depSum += p.Depth
			acc.depths++
		}
		acc.count++
		if p.Time.After(acc.latest) {
			acc.latest = p.Time
		}
	}

	out := make([]VectorPoint, 0, len(cells))
	for key, acc := range cells {
		n := float64(acc.count)
		direction := circularMeanDegrees(acc.sinSum/n, acc.cosSum/n)
		var depth float64
		if acc.depths > 0 {
			depth = acc.depSum / float64(acc.depths)
		}
		p := newVectorPoint(key.lat, key.lon, direction, acc.magSum/n, depth, acc.latest)
		p.depthKnown = acc.depths > 0
		out = append(out, p)
	}
	return out
}

// circularMeanDegrees recovers the mean bearing from averaged unit-vector
// components. The opposed-directions case (both components zero) is
// mathematically undefined; it is pinned to 0 degrees and callers rely on
// that exact value.
func circularMeanDegrees(meanSin, meanCos float64) float64 {
	const epsilon = 1e-12
	if math.Abs(meanSin) < epsilon && math.Abs(meanCos) < epsilon {
		return 0
	}
	return normalizeDegrees(math.Atan2(meanSin, meanCos) * 180 / math.Pi)
}

// normalizeDegrees maps any angle onto [0, 360).
func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// latestVectorPerLocation keeps the most recent record per 4-decimal-rounded
// coordinate. Input must be sorted ascending by time.
func latestVectorPerLocation(points []VectorPoint) []VectorPoint {
	type locKey struct{ lat, lon float64 }
	latest := make(map[locKey]int, len(points))
	key := func(p VectorPoint) locKey {
		return locKey{roundTo(p.Lat, latestOnlyPrecision), roundTo(p.Lon, latestOnlyPrecision)}
	}
	for i, p := range points {
		latest[key(p)] = i
	}
	reduced := make([]VectorPoint, 0, len(latest))
	for i, p := range points {
		if latest[key(p)] == i {
			reduced = append(reduced, p)
		}
	}
	return reduced
}

// FieldMapping names the magnitude/direction row fields backing a display
// parameter.
type FieldMapping struct {
	Magnitude string `json:"magnitude"`
	Direction string `json:"direction"`
}

// displayFieldMappings resolves UI display parameters to row fields. Unknown
// parameters fall back to the generic ocean-current mapping.
var displayFieldMappings = map[string]FieldMapping{
	"Current Speed":  {Magnitude: KeyCurrentSpeed, Direction: KeyCurrentDirection},
	"Wind Speed":     {Magnitude: KeyWindSpeed, Direction: KeyWindDirection},
	"Ocean Currents": {Magnitude: KeyCurrentSpeed, Direction: KeyCurrentDirection},
}

// ResolveFieldMapping returns the field mapping for a display parameter,
// defaulting to "Ocean Currents".
func ResolveFieldMapping(displayParameter string) FieldMapping {
	if m, ok := displayFieldMappings[displayParameter]; ok {
		return m
	}
	return displayFieldMappings["Ocean Currents"]
}

// GeometryOptions controls GenerateVectorGeometry.
type GeometryOptions struct {
	// DisplayParameter selects the field mapping, e.g. "Current Speed" or
	// "Wind Speed". Empty or unknown values use the ocean-current mapping.
	DisplayParameter string

	// VectorScale converts magnitude into arrow length in degrees. Zero
	// means defaultVectorScale.
	VectorScale float64

	// MinMagnitude drops vectors below the threshold after aggregation.
	MinMagnitude float64

	// ColorBy selects the series driving colorValue: "speed" (default) or
	// "depth".
	ColorBy string

	// MaxVectors caps the number of rendered vectors, keeping the most
	// recent.
	MaxVectors int

	// DepthFilter, when set, keeps only rows within depthTolerance of it.
	DepthFilter *float64

	// GridResolution, when positive, grid-aggregates before rendering.
	GridResolution float64
}

// VectorFieldMeta describes the geometry collection for the rendering layer.
type VectorFieldMeta struct {
	Count          int          `json:"count"`
	MagnitudeRange Bounds       `json:"magnitude_range"`
	ColorRange     Bounds       `json:"color_range"`
	ColorBy        string       `json:"color_by"`
	Mapping        FieldMapping `json:"mapping"`
	GeneratedAt    time.Time    `json:"generated_at"`
}

// VectorField is the renderable product: one line feature per vector plus
// collection metadata.
type VectorField struct {
	Features *geojson.FeatureCollection `json:"features"`
	Meta     VectorFieldMeta            `json:"meta"`
}

// GenerateVectorGeometry builds renderable line geometry for a vector layer.
// It resolves the display parameter's field mapping, processes the rows with
// latestOnly reduction, drops vectors below MinMagnitude, and emits one
// LineString per vector from its origin to
// origin + (vectorX, vectorY) * magnitude * scale in (lon, lat) order. Each
// feature's colorValue is the normalized position of its speed or depth
// within the surviving set, 0.5 when the range is degenerate.
func GenerateVectorGeometry(rows []Row, opts GeometryOptions) VectorField {
	mapping := ResolveFieldMapping(opts.DisplayParameter)
	scale := opts.VectorScale
	if scale <= 0 {
		scale = defaultVectorScale
	}
	colorBy := opts.ColorBy
	if colorBy != "depth" {
		colorBy = "speed"
	}

	points := ProcessVector(rows, VectorOptions{
		MagnitudeKey:   mapping.Magnitude,
		DirectionKey:   mapping.Direction,
		DepthFilter:    opts.DepthFilter,
		GridResolution: opts.GridResolution,
		LatestOnly:     true,
		MaxPoints:      opts.MaxVectors,
	})

	kept := points[:0]
	for _, p := range points {
		if p.Magnitude < opts.MinMagnitude {
			continue
		}
		kept = append(kept, p)
	}

	colorValueOf := func(p VectorPoint) float64 { return p.Magnitude }
	if colorBy == "depth" {
		colorValueOf = func(p VectorPoint) float64 { return p.Depth }
	}

	magRange := Bounds{}
	colorRange := Bounds{}
	for i, p := range kept {
		if i == 0 {
			magRange = Bounds{Min: p.Magnitude, Max: p.Magnitude}
			colorRange = Bounds{Min: colorValueOf(p), Max: colorValueOf(p)}
			continue
		}
		magRange.Min = math.Min(magRange.Min, p.Magnitude)
		magRange.Max = math.Max(magRange.Max, p.Magnitude)
		colorRange.Min = math.Min(colorRange.Min, colorValueOf(p))
		colorRange.Max = math.Max(colorRange.Max, colorValueOf(p))
	}

	fc := geojson.NewFeatureCollection()
	for _, p := range kept {
		length := p.Magnitude * scale
		line := orb.LineString{
			{p.Lon, p.Lat},
			{p.Lon + p.VectorX*length, p.Lat + p.VectorY*length},
		}

		colorValue := 0.5
		if colorRange.Max > colorRange.Min {
			colorValue = (colorValueOf(p) - colorRange.Min) / (colorRange.Max - colorRange.Min)
		}

		feature := geojson.NewFeature(line)
		feature.ID = p.ID
		feature.Properties = geojson.Properties{
			"id":          p.ID,
			"direction":   p.Direction,
			"magnitude":   p.Magnitude,
			"depth":       p.Depth,
			"time":        p.Time.UTC().Format(time.RFC3339),
			"color_value": colorValue,
		}
		fc.Append(feature)
	}

	return VectorField{
		Features: fc,
		Meta: VectorFieldMeta{
			Count:          len(kept),
			MagnitudeRange: magRange,
			ColorRange:     colorRange,
			ColorBy:        colorBy,
			Mapping:        mapping,
			GeneratedAt:    clock.Now().UTC(),
		},
	}
}
