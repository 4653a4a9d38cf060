// Package course implements the Course Loader & Cleaner (spec §4.1): it
// turns noisy raw GPS tuples into a stable, physics-ready TrackPoint
// sequence with monotone distance, smoothed elevation, and bounded grade.
package course

import (
	"math"

	"github.com/nick-riduck/bike-course-simulator/internal/kerr"
)

// minPointSpacingM is the minimum spacing (m) enforced between retained
// consecutive points (spec §4.1 step 2).
const minPointSpacingM = 5.0

// elevationWindow is the centered moving-average window applied to
// elevation (spec §4.1 step 3).
const elevationWindow = 10

// MaxGrade is the absolute grade clamp applied after differentiation
// (spec §3, §4.1 step 5).
const MaxGrade = 0.25

// RawPoint is a single (lat, lon, ele) input tuple, optionally tagged with a
// surface id supplied by a map-matching collaborator.
type RawPoint struct {
	Lat, Lon, Ele float64
	Surface       string
}

// TrackPoint is one cleaned, physics-ready point (spec §3).
type TrackPoint struct {
	Latitude  float64
	Longitude float64
	Elevation float64
	Distance  float64 // cumulative, meters
	Grade     float64 // ratio, clamped to [-MaxGrade, MaxGrade]
	Heading   float64 // radians
	Surface   string
}

// Load cleans raw points into a TrackPoint sequence per spec §4.1.
func Load(points []RawPoint) ([]TrackPoint, error) {
	if err := validateFinite(points); err != nil {
		return nil, err
	}

	pruned := pruneByMinDistance(points)
	if len(pruned) < 2 {
		return nil, kerr.Newf(kerr.EmptyCourse, "course has %d points after pruning, need at least 2", len(pruned))
	}

	elevations := smoothElevation(pruned)

	out := make([]TrackPoint, len(pruned))
	cumDist := 0.0
	for i, p := range pruned {
		if i > 0 {
			prev := pruned[i-1]
			cumDist += haversineMeters(prev.Lat, prev.Lon, p.Lat, p.Lon)
		}
		out[i] = TrackPoint{
			Latitude:  p.Lat,
			Longitude: p.Lon,
			Elevation: elevations[i],
			Distance:  cumDist,
			Surface:   p.Surface,
		}
	}

	computeGrades(out)
	computeHeadings(out)

	return out, nil
}

func validateFinite(points []RawPoint) error {
	for i, p := range points {
		if !finite(p.Lat) || !finite(p.Lon) || !finite(p.Ele) {
			return kerr.Newf(kerr.MalformedInput, "point %d has non-finite coordinate (lat=%v, lon=%v, ele=%v)", i, p.Lat, p.Lon, p.Ele)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// pruneByMinDistance drops any point within minPointSpacingM of the
// previously retained point (spec §4.1 step 2).
func pruneByMinDistance(points []RawPoint) []RawPoint {
	if len(points) == 0 {
		return nil
	}
	kept := make([]RawPoint, 0, len(points))
	kept = append(kept, points[0])
	for i := 1; i < len(points); i++ {
		last := kept[len(kept)-1]
		d := haversineMeters(last.Lat, last.Lon, points[i].Lat, points[i].Lon)
		if d >= minPointSpacingM {
			kept = append(kept, points[i])
		}
	}
	return kept
}

// smoothElevation applies a centered moving average of the configured
// window to elevation (spec §4.1 step 3).
func smoothElevation(points []RawPoint) []float64 {
	n := len(points)
	out := make([]float64, n)
	half := elevationWindow / 2
	for i := 0; i < n; i++ {
		lo := i - half
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		sum := 0.0
		count := 0
		for j := lo; j <= hi; j++ {
			sum += points[j].Ele
			count++
		}
		out[i] = sum / float64(count)
	}
	return out
}

// computeGrades fills Grade for every point after the first, clamped to
// [-MaxGrade, MaxGrade] (spec §4.1 step 5).
func computeGrades(points []TrackPoint) {
	if len(points) == 0 {
		return
	}
	points[0].Grade = 0
	for i := 1; i < len(points); i++ {
		dDist := points[i].Distance - points[i-1].Distance
		var grade float64
		if dDist > 0 {
			grade = (points[i].Elevation - points[i-1].Elevation) / dDist
		}
		points[i].Grade = clamp(grade, -MaxGrade, MaxGrade)
	}
}

// computeHeadings fills Heading with the forward-difference initial bearing
// to the next point; the last point repeats the previous heading
// (spec §4.1 step 6).
func computeHeadings(points []TrackPoint) {
	n := len(points)
	if n == 0 {
		return
	}
	for i := 0; i < n-1; i++ {
		points[i].Heading = initialBearingRad(points[i].Latitude, points[i].Longitude, points[i+1].Latitude, points[i+1].Longitude)
	}
	if n >= 2 {
		points[n-1].Heading = points[n-2].Heading
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
