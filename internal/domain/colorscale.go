package domain

import "math"

// ColorStop anchors a color at a value along a scale.
type ColorStop struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// ColorScale drives a rendering layer's color interpolation for one numeric
// series.
type ColorScale struct {
	Min   float64     `json:"min"`
	Max   float64     `json:"max"`
	Mid   float64     `json:"mid"`
	Stops []ColorStop `json:"stops"`
}

// Default ranges used when a series has no finite values. Returning a fixed
// scale keeps the rendering layer working on empty layers; this is never an
// error.
var defaultScaleRanges = map[string]Bounds{
	"speed":       {Min: 0, Max: 10},
	"depth":       {Min: 0, Max: 30},
	"temperature": {Min: 0, Max: 30},
}

// BuildColorScale computes min/mid/max and gradient stops for a numeric
// series. Speed-like series get a blue-green-red 3-stop gradient, depth-like
// get yellow-cyan-blue, and temperature gets 5 stops from blue through cyan,
// green, and yellow to red at the quarter points. Unknown kinds use the speed
// palette. NaN and infinite values are ignored; an empty or all-invalid
// series yields the kind's fixed default range with the same stop shape.
func BuildColorScale(values []float64, kind string) ColorScale {
	if _, ok := defaultScaleRanges[kind]; !ok {
		kind = "speed"
	}

	bounds, ok := seriesBounds(values)
	if !ok {
		bounds = defaultScaleRanges[kind]
	}

	mid := (bounds.Min + bounds.Max) / 2
	scale := ColorScale{Min: bounds.Min, Max: bounds.Max, Mid: mid}

	switch kind {
	case "depth":
		scale.Stops = []ColorStop{
			{Value: bounds.Min, Color: "#ffff00"},
			{Value: mid, Color: "#00ffff"},
			{Value: bounds.Max, Color: "#0000ff"},
		}
	case "temperature":
		quarter := bounds.Min + (bounds.Max-bounds.Min)/4
		threeQuarter := bounds.Min + 3*(bounds.Max-bounds.Min)/4
		scale.Stops = []ColorStop{
			{Value: bounds.Min, Color: "#0000ff"},
			{Value: quarter, Color: "#00ffff"},
			{Value: mid, Color: "#00ff00"},
			{Value: threeQuarter, Color: "#ffff00"},
			{Value: bounds.Max, Color: "#ff0000"},
		}
	default: // speed
		scale.Stops = []ColorStop{
			{Value: bounds.Min, Color: "#0000ff"},
			{Value: mid, Color: "#00ff00"},
			{Value: bounds.Max, Color: "#ff0000"},
		}
	}
	return scale
}

// seriesBounds returns the finite min/max of a series, false when none exist.
func seriesBounds(values []float64) (Bounds, bool) {
	found := false
	var bounds Bounds
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if !found {
			bounds = Bounds{Min: v, Max: v}
			found = true
			continue
		}
		bounds.Min = math.Min(bounds.Min, v)
		bounds.Max = math.Max(bounds.Max, v)
	}
	return bounds, found
}
