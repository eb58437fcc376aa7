// Command qareport runs the offline data-quality checks against a row
// fixture: coordinate validation, water-region coverage, and station
// clustering. It exits non-zero when the fixture falls below the quality
// thresholds, making it usable as a CI gate for new datasets.
//
// Usage:
//
//	go run ./cmd/qareport -in data/mock/gulf_rows.json -min-valid-pct 90
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/ocean-map-engine/internal/domain"
)

func main() {
	in := flag.String("in", "", "path to a JSON row fixture (array of rows)")
	minValidPct := flag.Float64("min-valid-pct", 90.0, "minimum acceptable valid-coordinate percentage")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}

	rows, err := loadRows(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load rows: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(rows, *minValidPct))
}

func loadRows(path string) ([]domain.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []domain.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func run(rows []domain.Row, minValidPct float64) int {
	fmt.Println("=== Measurement Row Quality Report ===")
	fmt.Println()

	report := domain.ValidateCoordinates(rows)
	printCoordinateSection(report)

	onWater := countOnWater(rows)
	fmt.Printf("\nOn-water coordinates: %d of %d valid\n", onWater, report.Valid)

	stations := domain.ClusterStations(rows)
	printStationSection(stations)

	fmt.Println()
	if report.ValidPercentage < minValidPct {
		fmt.Printf("FAIL: valid percentage %.1f%% is below threshold %.1f%%\n",
			report.ValidPercentage, minValidPct)
		return 1
	}
	fmt.Printf("PASS: valid percentage %.1f%% meets threshold %.1f%%\n",
		report.ValidPercentage, minValidPct)
	return 0
}

func printCoordinateSection(report domain.CoordinateReport) {
	fmt.Printf("Rows: %d total, %d valid, %d invalid (%.1f%% valid)\n",
		report.Total, report.Valid, report.Invalid, report.ValidPercentage)
	if report.Valid > 0 {
		fmt.Printf("Lat bounds: [%.5f, %.5f]\n", report.LatBounds.Min, report.LatBounds.Max)
		fmt.Printf("Lon bounds: [%.5f, %.5f]\n", report.LonBounds.Min, report.LonBounds.Max)
	}
	fmt.Printf("Generated at: %s\n", report.GeneratedAt.Format(time.RFC3339))

	if len(report.SampleInvalid) > 0 {
		fmt.Println("\nSample invalid rows:")
		for i, row := range report.SampleInvalid {
			fmt.Printf("  [%d] lat=%v lon=%v source=%v\n",
				i+1, row[domain.KeyLat], row[domain.KeyLon], row[domain.KeySourceFile])
		}
	}
}

func countOnWater(rows []domain.Row) int {
	n := 0
	for _, row := range rows {
		geo, ok := row.Coordinates()
		if ok && domain.IsLikelyOnWater(geo.Lat, geo.Lon) {
			n++
		}
	}
	return n
}

func printStationSection(stations []domain.Station) {
	fmt.Printf("\nStations: %d\n", len(stations))
	for _, s := range stations {
		fmt.Printf("  %-32s points=%-5d color=%s depth=%.0fm files=%d\n",
			s.Name, s.DataPointCount, s.Color, s.EstimatedDepth, len(s.SourceFiles))
		if s.DeploymentStatus != "" {
			fmt.Printf("    status: %s\n", s.DeploymentStatus)
		}
	}
}
