// Package domain derives map-ready data products from time-stamped,
// geolocated ocean-sensor measurements.
//
// # Data Source
//
// Measurement rows originate from moored and drifting sensor platforms in the
// northern Gulf of Mexico operating region. An upstream query service fetches
// rows in bulk (capped at roughly ten thousand per query), tags them with
// area/model/source-file metadata, and hands them to this package as
// loosely-typed records. Rows carry at least latitude, longitude, and a
// timestamp, plus some subset of the named scalar and vector attributes
// (temperature, salinity, pressure, sea-surface height, sound speed, current
// speed/direction, wind speed/direction).
//
// # Row Conventions
//
// Rows are generic key-value maps ([Row]) because upstream schemas vary by
// sensor model. Every accessor validates its field at point of use: a row
// missing an attribute is silently excluded from the one computation that
// needs it, never treated as an error. Coordinates are WGS-84 degrees; a row
// is valid iff |lat| <= 90 and |lon| <= 180 and both values are finite.
//
// Direction fields are degrees clockwise from north, so the east component of
// a unit vector is sin(dir) and the north component is cos(dir).
//
// # Grid Binning
//
// Spatial aggregation partitions lat/lon space into fixed-size cells by
// coordinate rounding: the cell key for a row is
// (round(lat/res)*res, round(lon/res)*res). Scalar attributes reduce to the
// per-cell arithmetic mean; directions reduce to the circular mean (average
// of unit vectors, recovered via atan2) so that 10 degrees and 350 degrees
// average to 0, not 180. Two exactly opposed directions sum to a zero vector;
// atan2(0, 0) is mathematically undefined, and this package pins the result
// to 0 degrees. Downstream consumers depend on that convention.
//
// # Station Clustering
//
// Stations group raw samples believed to share a physical sensor location.
// The rounding precision adapts to row volume (1 decimal place above 50,000
// rows, 2 above 10,000, 3 above 1,000, otherwise 4) so cluster counts stay
// bounded as volume grows. Each cluster's centroid is the exact mean of all
// rows within one bucket-width of the cell anchor, not the rounded anchor
// itself. Rows on land (per the bounding-box water heuristic) and rows in
// pre-deployment or post-recovery status are excluded.
//
// # Graceful Degradation
//
// Every processor filters bad rows instead of raising: NaN, out-of-range, and
// missing values drop the row from the affected product. Empty results are
// valid successes. The only hard failure in the system is a malformed
// top-level input, reported as an [ErrInvalidInput] error naming the argument.
package domain
