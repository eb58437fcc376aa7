package domain

import (
	"math"
	"strconv"
	"time"
)

// Well-known row keys. Upstream schemas vary, so these are conventions rather
// than a fixed schema; unknown keys are carried through untouched.
const (
	KeyLat              = "lat"
	KeyLon              = "lon"
	KeyDepth            = "depth"
	KeyTime             = "time"
	KeyTemperature      = "temp"
	KeySalinity         = "salinity"
	KeyPressure         = "pressure"
	KeySurfaceHeight    = "ssh"
	KeySoundSpeed       = "sound_speed"
	KeyCurrentSpeed     = "nspeed"
	KeyCurrentDirection = "direction"
	KeyWindSpeed        = "wspeed"
	KeyWindDirection    = "wdirection"
	KeyDeploymentStatus = "deployment_status"
	KeySourceFile       = "source_file"
	KeyModel            = "model"
	KeyArea             = "area"
)

// Row is one loosely-typed measurement record. Field presence is optional
// everywhere except where a specific computation requires a field, in which
// case the row is filtered out of that computation only.
type Row map[string]any

// Geo is a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is an inclusive numeric range.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Float returns the named field as a finite float64. It accepts native
// numeric types, json.Number-style strings, and string-encoded numbers, the
// forms upstream feeds actually produce. Missing, unparseable, NaN, and
// infinite values report false.
func (r Row) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String returns the named field as a non-empty string.
func (r Row) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Time returns the named field as a time.Time. It accepts time.Time values,
// RFC 3339 strings, and Unix-seconds numbers. Missing or unparseable values
// report false.
func (r Row) Time(key string) (time.Time, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return time.Time{}, false
	}

	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case int:
		return time.Unix(int64(t), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// Coordinates returns the row's latitude and longitude when both are present,
// finite, and within WGS-84 range.
func (r Row) Coordinates() (Geo, bool) {
	lat, ok := r.Float(KeyLat)
	if !ok || math.Abs(lat) > 90 {
		return Geo{}, false
	}
	lon, ok := r.Float(KeyLon)
	if !ok || math.Abs(lon) > 180 {
		return Geo{}, false
	}
	return Geo{Lat: lat, Lon: lon}, true
}

// observedAt returns the row timestamp, zero when absent. Sorting treats a
// missing timestamp as oldest.
func (r Row) observedAt() time.Time {
	t, _ := r.Time(KeyTime)
	return t
}
