package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currentOpts() VectorOptions {
	return VectorOptions{MagnitudeKey: KeyCurrentSpeed, DirectionKey: KeyCurrentDirection}
}

func TestProcessVector(t *testing.T) {
	t.Run("requires both magnitude and direction", func(t *testing.T) {
		rows := []Row{
			testRow(30.0, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 90.0),
			testRow(30.0, -89.0, KeyCurrentSpeed, 2.0),                         // no direction
			testRow(30.0, -89.0, KeyCurrentDirection, 90.0),                    // no magnitude
			testRow(30.0, -89.0, KeyCurrentSpeed, 2.0, KeyTemperature, 21.0),   // temp is not a bearing
			testRow(30.0, -89.0, KeyCurrentSpeed, "x", KeyCurrentDirection, 5), // unparseable magnitude
		}
		points := ProcessVector(rows, currentOpts())

		require.Len(t, points, 1)
		assert.Equal(t, 90.0, points[0].Direction)
	})

	t.Run("scalar processor tolerates what the vector processor rejects", func(t *testing.T) {
		// One row with temperature but no direction: excluded from the vector
		// field, included in the scalar field. The asymmetry is intentional.
		rows := []Row{
			testRow(30.0, -89.0, KeyTemperature, 21.0, KeyCurrentSpeed, 2.0),
		}

		assert.Empty(t, ProcessVector(rows, currentOpts()))
		assert.Len(t, ProcessScalar(rows, KeyTemperature, ScalarOptions{}), 1)
	})

	t.Run("unit vector components follow compass convention", func(t *testing.T) {
		tests := []struct {
			direction float64
			vx, vy    float64
		}{
			{0, 0, 1},    // north
			{90, 1, 0},   // east
			{180, 0, -1}, // south
			{270, -1, 0}, // west
		}
		for _, tt := range tests {
			rows := []Row{testRow(30.0, -89.0, KeyCurrentSpeed, 1.0, KeyCurrentDirection, tt.direction)}
			points := ProcessVector(rows, currentOpts())

			require.Len(t, points, 1)
			assert.InDelta(t, tt.vx, points[0].VectorX, 1e-9, "direction %v", tt.direction)
			assert.InDelta(t, tt.vy, points[0].VectorY, 1e-9, "direction %v", tt.direction)
		}
	})

	t.Run("circular mean is wrap-around correct", func(t *testing.T) {
		rows := []Row{
			testRow(30.0, -89.0, KeyCurrentSpeed, 1.0, KeyCurrentDirection, 10.0, KeyTime, t0),
			testRow(30.0, -89.0, KeyCurrentSpeed, 1.0, KeyCurrentDirection, 350.0, KeyTime, t1),
		}
		opts := currentOpts()
		opts.GridResolution = 0.01
		points := ProcessVector(rows, opts)

		require.Len(t, points, 1)
		// Mean of 10 and 350 degrees is 0, not 180.
		normalized := math.Min(points[0].Direction, 360-points[0].Direction)
		assert.InDelta(t, 0.0, normalized, 1e-9)
	})

	t.Run("opposed directions pin to zero", func(t *testing.T) {
		rows := []Row{
			testRow(30.0, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 0.0, KeyTime, t0),
			testRow(30.0, -89.0, KeyCurrentSpeed, 4.0, KeyCurrentDirection, 180.0, KeyTime, t1),
		}
		opts := currentOpts()
		opts.GridResolution = 0.01
		points := ProcessVector(rows, opts)

		require.Len(t, points, 1)
		assert.InDelta(t, 3.0, points[0].Magnitude, 1e-9)
		assert.Equal(t, 0.0, points[0].Direction)
		assert.Equal(t, t1, points[0].Time)
	})

	t.Run("grid aggregation averages magnitude and depth", func(t *testing.T) {
		rows := []Row{
			testRow(30.001, -89.001, KeyCurrentSpeed, 1.0, KeyCurrentDirection, 45.0, KeyDepth, 10.0, KeyTime, t0),
			testRow(30.002, -89.002, KeyCurrentSpeed, 3.0, KeyCurrentDirection, 45.0, KeyDepth, 30.0, KeyTime, t1),
		}
		opts := currentOpts()
		opts.GridResolution = 0.1
		points := ProcessVector(rows, opts)

		require.Len(t, points, 1)
		assert.InDelta(t, 2.0, points[0].Magnitude, 1e-9)
		assert.InDelta(t, 20.0, points[0].Depth, 1e-9)
		assert.InDelta(t, 45.0, points[0].Direction, 1e-9)
		assert.InDelta(t, 30.0, points[0].Lat, 1e-9)
		assert.InDelta(t, -89.0, points[0].Lon, 1e-9)
	})

	t.Run("cell depth averages only members carrying depth", func(t *testing.T) {
		rows := []Row{
			testRow(30.001, -89.001, KeyCurrentSpeed, 1.0, KeyCurrentDirection, 45.0, KeyDepth, 30.0, KeyTime, t0),
			testRow(30.002, -89.002, KeyCurrentSpeed, 3.0, KeyCurrentDirection, 45.0, KeyTime, t1), // no depth
		}
		opts := currentOpts()
		opts.GridResolution = 0.1
		points := ProcessVector(rows, opts)

		require.Len(t, points, 1)
		assert.InDelta(t, 30.0, points[0].Depth, 1e-9)
	})

	t.Run("grid aggregation is deterministic without timestamps", func(t *testing.T) {
		// Rows with no time all sort equal, so ordering must not leak map
		// iteration order.
		var rows []Row
		for i := 0; i < 20; i++ {
			rows = append(rows, testRow(
				26.0+float64(i%5)*0.5, -92.0+float64(i/5)*0.5,
				KeyCurrentSpeed, 1.0+float64(i), KeyCurrentDirection, float64(i*17%360),
			))
		}
		opts := currentOpts()
		opts.GridResolution = 0.5

		first := ProcessVector(rows, opts)
		require.Len(t, first, 20)
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, ProcessVector(rows, opts))
		}
	})

	t.Run("latestOnly runs after grid aggregation", func(t *testing.T) {
		// Two cells that collapse to the same 4-decimal coordinate cannot
		// exist at coarse resolutions, so latestOnly keeps both cells but
		// dedupes raw duplicates when no gridding is requested.
		rows := []Row{
			testRow(30.0, -89.0, KeyCurrentSpeed, 1.0, KeyCurrentDirection, 10.0, KeyTime, t0),
			testRow(30.0, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 20.0, KeyTime, t1),
		}
		opts := currentOpts()
		opts.LatestOnly = true
		points := ProcessVector(rows, opts)

		require.Len(t, points, 1)
		assert.Equal(t, 2.0, points[0].Magnitude)
	})

	t.Run("deterministic IDs for identical inputs", func(t *testing.T) {
		rows := []Row{testRow(30.0, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 90.0, KeyTime, t0)}
		first := ProcessVector(rows, currentOpts())
		second := ProcessVector(rows, currentOpts())

		require.Len(t, first, 1)
		assert.Equal(t, first, second)
		assert.NotEmpty(t, first[0].ID)
	})
}

func TestResolveFieldMapping(t *testing.T) {
	tests := []struct {
		name     string
		param    string
		expected FieldMapping
	}{
		{"current speed", "Current Speed", FieldMapping{Magnitude: KeyCurrentSpeed, Direction: KeyCurrentDirection}},
		{"wind speed", "Wind Speed", FieldMapping{Magnitude: KeyWindSpeed, Direction: KeyWindDirection}},
		{"explicit default", "Ocean Currents", FieldMapping{Magnitude: KeyCurrentSpeed, Direction: KeyCurrentDirection}},
		{"unknown falls back", "Chlorophyll", FieldMapping{Magnitude: KeyCurrentSpeed, Direction: KeyCurrentDirection}},
		{"empty falls back", "", FieldMapping{Magnitude: KeyCurrentSpeed, Direction: KeyCurrentDirection}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveFieldMapping(tt.param))
		})
	}
}

func TestGenerateVectorGeometry(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	t.Run("builds one line segment per vector", func(t *testing.T) {
		rows := []Row{
			testRow(30.0, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 90.0, KeyTime, t0),
		}
		field := GenerateVectorGeometry(rows, GeometryOptions{VectorScale: 0.5})

		require.Equal(t, 1, field.Meta.Count)
		require.Len(t, field.Features.Features, 1)

		line, ok := field.Features.Features[0].Geometry.(orb.LineString)
		require.True(t, ok)
		require.Len(t, line, 2)
		assert.Equal(t, orb.Point{-89.0, 30.0}, line[0])
		// Due east: end = origin + (1, 0) * magnitude * scale.
		assert.InDelta(t, -88.0, line[1][0], 1e-9)
		assert.InDelta(t, 30.0, line[1][1], 1e-9)

		assert.Equal(t, fixed, field.Meta.GeneratedAt)
		assert.Equal(t, "speed", field.Meta.ColorBy)
	})

	t.Run("drops vectors below the magnitude floor", func(t *testing.T) {
		rows := []Row{
			testRow(30.0, -89.0, KeyCurrentSpeed, 0.1, KeyCurrentDirection, 0.0, KeyTime, t0),
			testRow(30.1, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 0.0, KeyTime, t0),
		}
		field := GenerateVectorGeometry(rows, GeometryOptions{MinMagnitude: 0.5})

		assert.Equal(t, 1, field.Meta.Count)
		require.Len(t, field.Features.Features, 1)
		assert.Equal(t, 2.0, field.Features.Features[0].Properties["magnitude"])
	})

	t.Run("color value spans the surviving range", func(t *testing.T) {
		rows := []Row{
			testRow(30.0, -89.0, KeyCurrentSpeed, 1.0, KeyCurrentDirection, 0.0, KeyTime, t0),
			testRow(30.1, -89.0, KeyCurrentSpeed, 3.0, KeyCurrentDirection, 0.0, KeyTime, t0),
			testRow(30.2, -89.0, KeyCurrentSpeed, 5.0, KeyCurrentDirection, 0.0, KeyTime, t0),
		}
		field := GenerateVectorGeometry(rows, GeometryOptions{})

		require.Equal(t, 3, field.Meta.Count)
		assert.Equal(t, Bounds{Min: 1.0, Max: 5.0}, field.Meta.ColorRange)

		var values []float64
		for _, f := range field.Features.Features {
			values = append(values, f.Properties["color_value"].(float64))
		}
		assert.Contains(t, values, 0.0)
		assert.Contains(t, values, 0.5)
		assert.Contains(t, values, 1.0)
	})

	t.Run("degenerate color range pins to one half", func(t *testing.T) {
		rows := []Row{
			testRow(30.0, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 0.0, KeyTime, t0),
			testRow(30.1, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 0.0, KeyTime, t0),
		}
		field := GenerateVectorGeometry(rows, GeometryOptions{})

		for _, f := range field.Features.Features {
			assert.Equal(t, 0.5, f.Properties["color_value"])
		}
	})

	t.Run("wind display parameter reads the wind fields", func(t *testing.T) {
		rows := []Row{
			testRow(30.0, -89.0, KeyWindSpeed, 7.5, KeyWindDirection, 45.0, KeyTime, t0),
			testRow(30.1, -89.0, KeyCurrentSpeed, 2.0, KeyCurrentDirection, 90.0, KeyTime, t0),
		}
		field := GenerateVectorGeometry(rows, GeometryOptions{DisplayParameter: "Wind Speed"})

		require.Equal(t, 1, field.Meta.Count)
		assert.Equal(t, 7.5, field.Features.Features[0].Properties["magnitude"])
		assert.Equal(t, FieldMapping{Magnitude: KeyWindSpeed, Direction: KeyWindDirection}, field.Meta.Mapping)
	})

	t.Run("empty input yields an empty collection", func(t *testing.T) {
		field := GenerateVectorGeometry(nil, GeometryOptions{})

		assert.Equal(t, 0, field.Meta.Count)
		assert.NotNil(t, field.Features)
		assert.Empty(t, field.Features.Features)
	})
}
