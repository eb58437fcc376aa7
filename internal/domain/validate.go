package domain

import (
	"math"
	"time"
)

// Limits on the sample slices carried in a CoordinateReport. Samples exist so
// an operator can eyeball a handful of representative rows, not to echo the
// whole dataset back.
const (
	maxValidSamples   = 10
	maxInvalidSamples = 5
)

// CoordinateReport summarizes coordinate quality across a row set.
type CoordinateReport struct {
	Total           int       `json:"total"`
	Valid           int       `json:"valid"`
	Invalid         int       `json:"invalid"`
	ValidPercentage float64   `json:"valid_percentage"`
	LatBounds       Bounds    `json:"lat_bounds"`
	LonBounds       Bounds    `json:"lon_bounds"`
	SampleValid     []Geo     `json:"sample_valid"`
	SampleInvalid   []Row     `json:"sample_invalid"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// ValidateCoordinates classifies every row as having valid or invalid
// coordinates and reports aggregate quality statistics. A row is valid iff
// lat and lon are both present, parse to finite numbers, and satisfy
// |lat| <= 90 and |lon| <= 180. Bounds cover valid rows only.
func ValidateCoordinates(rows []Row) CoordinateReport {
	report := CoordinateReport{
		Total:       len(rows),
		GeneratedAt: clock.Now().UTC(),
	}

	first := true
	for _, row := range rows {
		geo, ok := row.Coordinates()
		if !ok {
			report.Invalid++
			if len(report.SampleInvalid) < maxInvalidSamples {
				report.SampleInvalid = append(report.SampleInvalid, row)
			}
			continue
		}

		report.Valid++
		if len(report.SampleValid) < maxValidSamples {
			report.SampleValid = append(report.SampleValid, geo)
		}

		if first {
			report.LatBounds = Bounds{Min: geo.Lat, Max: geo.Lat}
			report.LonBounds = Bounds{Min: geo.Lon, Max: geo.Lon}
			first = false
			continue
		}
		report.LatBounds.Min = math.Min(report.LatBounds.Min, geo.Lat)
		report.LatBounds.Max = math.Max(report.LatBounds.Max, geo.Lat)
		report.LonBounds.Min = math.Min(report.LonBounds.Min, geo.Lon)
		report.LonBounds.Max = math.Max(report.LonBounds.Max, geo.Lon)
	}

	if report.Total > 0 {
		report.ValidPercentage = 100 * float64(report.Valid) / float64(report.Total)
	}
	return report
}

// Operating-region bounding box: the Gulf of Mexico, generously drawn.
// The exclusion box cuts out the Mississippi delta and coastal Louisiana,
// the one landmass inside the box that reliably produced phantom stations.
const (
	waterLatMin = 18.0
	waterLatMax = 30.8
	waterLonMin = -97.8
	waterLonMax = -80.2

	deltaLatMin = 29.4
	deltaLonMin = -91.5
	deltaLonMax = -89.2
)

// IsLikelyOnWater reports whether a coordinate plausibly sits on water inside
// the operating region. This is a coarse heuristic used to suppress
// land-based station artifacts, not an authoritative coastline test.
func IsLikelyOnWater(lat, lon float64) bool {
	if lat < waterLatMin || lat > waterLatMax || lon < waterLonMin || lon > waterLonMax {
		return false
	}
	if lat > deltaLatMin && lon > deltaLonMin && lon < deltaLonMax {
		return false
	}
	return true
}
