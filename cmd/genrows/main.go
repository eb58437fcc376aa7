// Command genrows generates deterministic synthetic measurement row fixtures
// for test suites and local ingest. Rows are scattered across the northern
// Gulf operating region with a seeded RNG so repeated runs produce identical
// fixtures.
//
// Usage:
//
//	go run ./cmd/genrows -out data/mock/gulf_rows.json -rows 500 -seed 42
//	go run ./cmd/genrows -out batch.json -batch -area gulf -model ncom
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/ocean-map-engine/internal/domain"
)

var baseTime = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

type rowBatch struct {
	Area       string       `json:"area"`
	Model      string       `json:"model"`
	SourceFile string       `json:"source_file"`
	Rows       []domain.Row `json:"rows"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the JSON fixture")
	rows := flag.Int("rows", 500, "number of rows to generate")
	seed := flag.Int64("seed", 42, "RNG seed")
	area := flag.String("area", "gulf", "dataset area tag")
	model := flag.String("model", "ncom", "dataset model tag")
	sourceFiles := flag.Int("source-files", 3, "number of distinct source files to spread rows across")
	batch := flag.Bool("batch", false, "wrap rows in the Kafka ingest batch envelope")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	generated := generateRows(rand.New(rand.NewSource(*seed)), *rows, *area, *model, *sourceFiles)

	var payload any = generated
	if *batch {
		payload = rowBatch{
			Area:       *area,
			Model:      *model,
			SourceFile: fmt.Sprintf("%s_%s_000.nc", *area, *model),
			Rows:       generated,
		}
	}

	if err := writeJSON(*out, payload); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d rows: %s", len(generated), *out)

	printStats(generated)
	return nil
}

// generateRows produces rows clustered around a handful of synthetic mooring
// sites, plus a sprinkle of drifting and invalid rows so validation and
// clustering tests have something to chew on.
func generateRows(rng *rand.Rand, n int, area, model string, sourceFiles int) []domain.Row {
	sites := make([]domain.Geo, 0, 5)
	for i := 0; i < cap(sites); i++ {
		sites = append(sites, domain.Geo{
			Lat: 26.0 + rng.Float64()*3.5,
			Lon: -94.0 + rng.Float64()*6.0,
		})
	}

	rows := make([]domain.Row, 0, n)
	for i := 0; i < n; i++ {
		site := sites[rng.Intn(len(sites))]

		row := domain.Row{
			domain.KeyLat:              jitter(rng, site.Lat, 0.00005),
			domain.KeyLon:              jitter(rng, site.Lon, 0.00005),
			domain.KeyDepth:            10.0 + rng.Float64()*20.0,
			domain.KeyTime:             baseTime.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			domain.KeyTemperature:      18.0 + rng.Float64()*12.0,
			domain.KeySalinity:         33.0 + rng.Float64()*4.0,
			domain.KeyCurrentSpeed:     rng.Float64() * 2.5,
			domain.KeyCurrentDirection: rng.Float64() * 360.0,
			domain.KeyWindSpeed:        rng.Float64() * 15.0,
			domain.KeyWindDirection:    rng.Float64() * 360.0,
			domain.KeySourceFile:       fmt.Sprintf("%s_%s_%03d.nc", area, model, rng.Intn(sourceFiles)),
			domain.KeyArea:             area,
			domain.KeyModel:            model,
		}

		// Every 25th row simulates an instrument in transit, and every 40th a
		// corrupted position fix.
		if i%25 == 0 {
			row[domain.KeyDeploymentStatus] = "pre-deployment"
		}
		if i%40 == 0 {
			row[domain.KeyLat] = 999.0
		}

		rows = append(rows, row)
	}
	return rows
}

func jitter(rng *rand.Rand, v, spread float64) float64 {
	return v + (rng.Float64()*2-1)*spread
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(rows []domain.Row) {
	report := domain.ValidateCoordinates(rows)
	stations := domain.ClusterStations(rows)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total rows: %d\n", report.Total)
	fmt.Printf("Valid coordinates: %d (%.1f%%)\n", report.Valid, report.ValidPercentage)
	fmt.Printf("Lat bounds: [%.5f, %.5f]\n", report.LatBounds.Min, report.LatBounds.Max)
	fmt.Printf("Lon bounds: [%.5f, %.5f]\n", report.LonBounds.Min, report.LonBounds.Max)
	fmt.Printf("Stations: %d\n", len(stations))
	for _, s := range stations {
		fmt.Printf("  %s: %d points, color %s, est. depth %.0f\n",
			s.Name, s.DataPointCount, s.Color, s.EstimatedDepth)
	}
}
