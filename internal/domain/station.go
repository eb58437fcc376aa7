package domain

import (
	"fmt"
	"math"
	"sort"
)

// Deployment states excluded from station clustering. Rows in these states
// describe hardware in transit, not a sensor on station.
const (
	statusPreDeployment = "pre-deployment"
	statusPostRecovery  = "post-recovery"
)

// Reference point for the water-depth heuristic: the Sigsbee Deep, the
// deepest part of the operating region.
const (
	deepRefLat   = 25.5
	deepRefLon   = -90.0
	deepRefDepth = 3900.0
	depthFalloff = 450.0 // meters of estimated depth lost per degree from the reference
	minDepth     = 15.0
)

// Station is a clustered, de-duplicated representation of raw point samples
// believed to share a physical sensor location.
type Station struct {
	Name             string   `json:"name"`
	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	Color            string   `json:"color"`
	DataPointCount   int      `json:"data_point_count"`
	SourceFiles      []string `json:"source_files"`
	Rows             []Row    `json:"-"`
	DeploymentStatus string   `json:"deployment_status,omitempty"`
	EstimatedDepth   float64  `json:"estimated_depth"`
	Model            string   `json:"model,omitempty"`
	Area             string   `json:"area,omitempty"`
}

// ClusterStations groups rows into stations using adaptive coordinate
// rounding. Rows with invalid or on-land coordinates and rows in
// pre-deployment or post-recovery status are excluded. The rounding precision
// coarsens with the volume of rows that survive those filters, so cluster
// counts stay bounded by the data actually being clustered; each station's
// coordinate is the exact centroid of all member-candidate rows within one
// bucket-width of the cell anchor, not the anchor itself.
//
// Output ordering is unspecified; callers must not depend on it.
func ClusterStations(rows []Row) []Station {
	candidates := stationCandidates(rows)
	if len(candidates) == 0 {
		return []Station{}
	}

	precision := precisionForCount(len(candidates))
	bucketWidth := math.Pow(10, -float64(precision))

	// Spatial hash: bucket every candidate by its rounded key once, so the
	// centroid rescan touches only the 3x3 neighborhood instead of the whole
	// row set.
	buckets := make(map[gridKey][]stationRow)
	for _, c := range candidates {
		key := gridKey{roundTo(c.geo.Lat, precision), roundTo(c.geo.Lon, precision)}
		buckets[key] = append(buckets[key], c)
	}

	stations := make([]Station, 0, len(buckets))
	for key, members := range buckets {
		centroid := localCentroid(key, bucketWidth, precision, buckets)
		stations = append(stations, buildStation(centroid, precision, members))
	}
	return stations
}

// ClusterStationsExact builds one station per exact unique coordinate with no
// rounding, for callers needing maximal fidelity.
func ClusterStationsExact(rows []Row) []Station {
	candidates := stationCandidates(rows)
	if len(candidates) == 0 {
		return []Station{}
	}

	groups := make(map[Geo][]stationRow)
	for _, c := range candidates {
		groups[c.geo] = append(groups[c.geo], c)
	}

	stations := make([]Station, 0, len(groups))
	for geo, members := range groups {
		stations = append(stations, buildStation(geo, latestOnlyPrecision, members))
	}
	return stations
}

// stationRow pairs a surviving row with its parsed coordinate.
type stationRow struct {
	row Row
	geo Geo
}

// stationCandidates applies the validity, water, and deployment filters.
func stationCandidates(rows []Row) []stationRow {
	out := make([]stationRow, 0, len(rows))
	for _, row := range rows {
		geo, ok := row.Coordinates()
		if !ok || !IsLikelyOnWater(geo.Lat, geo.Lon) {
			continue
		}
		if status, ok := row.String(KeyDeploymentStatus); ok {
			if status == statusPreDeployment || status == statusPostRecovery {
				continue
			}
		}
		out = append(out, stationRow{row: row, geo: geo})
	}
	return out
}

// precisionForCount picks the rounding precision in decimal places from row
// volume: coarser buckets as volume grows.
func precisionForCount(n int) int {
	switch {
	case n > 50000:
		return 1
	case n > 10000:
		return 2
	case n > 1000:
		return 3
	default:
		return 4
	}
}

// localCentroid averages every candidate within one bucket-width of the cell
// anchor, scanning the 3x3 neighboring buckets. Any row that close to the
// anchor rounds to a key at most one step away, so the neighborhood scan sees
// exactly the rows the definition covers.
func localCentroid(key gridKey, bucketWidth float64, precision int, buckets map[gridKey][]stationRow) Geo {
	var latSum, lonSum float64
	var count int

	for dLat := -1; dLat <= 1; dLat++ {
		for dLon := -1; dLon <= 1; dLon++ {
			neighbor := gridKey{
				lat: roundTo(key.lat+float64(dLat)*bucketWidth, precision),
				lon: roundTo(key.lon+float64(dLon)*bucketWidth, precision),
			}
			for _, c := range buckets[neighbor] {
				if math.Abs(c.geo.Lat-key.lat) > bucketWidth || math.Abs(c.geo.Lon-key.lon) > bucketWidth {
					continue
				}
				latSum += c.geo.Lat
				lonSum += c.geo.Lon
				count++
			}
		}
	}

	if count == 0 {
		return Geo{Lat: key.lat, Lon: key.lon}
	}
	return Geo{Lat: latSum / float64(count), Lon: lonSum / float64(count)}
}

// buildStation assembles the output record for one cluster.
func buildStation(centroid Geo, precision int, members []stationRow) Station {
	station := Station{
		Name:           fmt.Sprintf("Station %.*f, %.*f", precision, centroid.Lat, precision, centroid.Lon),
		Lat:            centroid.Lat,
		Lon:            centroid.Lon,
		Color:          densityColor(len(members)),
		DataPointCount: len(members),
		EstimatedDepth: estimateWaterDepth(centroid.Lat, centroid.Lon),
	}

	files := make(map[string]struct{})
	for _, m := range members {
		station.Rows = append(station.Rows, m.row)
		if f, ok := m.row.String(KeySourceFile); ok {
			files[f] = struct{}{}
		}
		if station.DeploymentStatus == "" {
			station.DeploymentStatus, _ = m.row.String(KeyDeploymentStatus)
		}
		if station.Model == "" {
			station.Model, _ = m.row.String(KeyModel)
		}
		if station.Area == "" {
			station.Area, _ = m.row.String(KeyArea)
		}
	}

	station.SourceFiles = make([]string, 0, len(files))
	for f := range files {
		station.SourceFiles = append(station.SourceFiles, f)
	}
	sort.Strings(station.SourceFiles)
	return station
}

// densityColor assigns the display color from member-count thresholds.
func densityColor(count int) string {
	switch {
	case count > 1000:
		return "#d73027"
	case count > 500:
		return "#fc8d59"
	case count > 100:
		return "#fee08b"
	case count > 10:
		return "#91bfdb"
	default:
		return "#4575b4"
	}
}

// estimateWaterDepth approximates depth in meters from angular distance to
// the deep-basin reference point. A heuristic for display, not bathymetry.
func estimateWaterDepth(lat, lon float64) float64 {
	dist := math.Hypot(lat-deepRefLat, lon-deepRefLon)
	depth := deepRefDepth - depthFalloff*dist
	if depth < minDepth {
		return minDepth
	}
	return depth
}
