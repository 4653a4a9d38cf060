// Package segment implements the Adaptive Segmenter (spec §4.2): it
// partitions a cleaned TrackPoint sequence into atomic, physics-ready
// segments bounded by grade-change, heading-change and length triggers.
package segment

import (
	"math"

	"github.com/nick-riduck/bike-course-simulator/internal/course"
)

// NominalLengthM is the target atomic segment length (spec §4.2).
const NominalLengthM = 20.0

// GradeChangeThreshold is the relative-to-running-average grade delta that
// closes a segment (spec §4.2).
const GradeChangeThreshold = 0.005

// HeadingChangeThresholdDeg is the heading delta (degrees) that closes a
// segment (spec §4.2).
const HeadingChangeThresholdDeg = 15.0

// TailMergeThresholdM is the length below which a trailing fragment is
// folded into the previous segment instead of standing alone (spec §4.2).
const TailMergeThresholdM = 5.0

// CrrResolver maps a surface id to its rolling-resistance coefficient.
// A nil resolver (or one that never recognizes a surface) falls back to
// baselineCrr.
type CrrResolver func(surface string) (crr float64, ok bool)

// AtomicSegment is one physics-unit partition of the course (spec §3).
type AtomicSegment struct {
	StartIdx, EndIdx int // indices into the originating TrackPoint slice
	Length           float64
	AvgGrade         float64
	AvgHeading       float64 // radians, circular mean
	Surface          string
	Crr              float64
}

// Segment partitions points into AtomicSegments per spec §4.2.
func Segment(points []course.TrackPoint, baselineCrr float64, resolve CrrResolver) []AtomicSegment {
	n := len(points)
	if n < 2 {
		return nil
	}

	var segments []AtomicSegment
	startIdx := 0
	refGrade := segmentGrade(points, 0, 1)
	refHeading := points[0].Heading

	for i := 1; i < n; i++ {
		dist := points[i].Distance - points[startIdx].Distance
		if dist <= 0 {
			continue
		}
		curGrade := clampGrade(segmentGrade(points, startIdx, i))
		curHeading := points[i].Heading

		gradeChanged := math.Abs(curGrade-refGrade) > GradeChangeThreshold
		headingChanged := angularDeltaDeg(refHeading, curHeading) > HeadingChangeThresholdDeg
		lengthReached := dist >= NominalLengthM
		isLast := i == n-1

		if gradeChanged || headingChanged || lengthReached {
			segments = append(segments, buildSegment(points, startIdx, i, baselineCrr, resolve))
			startIdx = i
			if i < n-1 {
				refGrade = clampGrade(segmentGrade(points, i, i+1))
				refHeading = points[i].Heading
			}
			continue
		}
		if isLast {
			segments = append(segments, buildSegment(points, startIdx, i, baselineCrr, resolve))
		}
	}

	return mergeShortTail(segments)
}

func buildSegment(points []course.TrackPoint, startIdx, endIdx int, baselineCrr float64, resolve CrrResolver) AtomicSegment {
	length := points[endIdx].Distance - points[startIdx].Distance
	grade := clampGrade(segmentGrade(points, startIdx, endIdx))
	heading := circularMeanHeading(points, startIdx, endIdx)
	surface := points[startIdx].Surface

	crr := baselineCrr
	if resolve != nil {
		if v, ok := resolve(surface); ok {
			crr = v
		}
	}

	return AtomicSegment{
		StartIdx:   startIdx,
		EndIdx:     endIdx,
		Length:     length,
		AvgGrade:   grade,
		AvgHeading: heading,
		Surface:    surface,
		Crr:        crr,
	}
}

// mergeShortTail folds a trailing fragment shorter than TailMergeThresholdM
// into the previous segment (spec §4.2).
func mergeShortTail(segments []AtomicSegment) []AtomicSegment {
	if len(segments) < 2 {
		return segments
	}
	last := segments[len(segments)-1]
	if last.Length >= TailMergeThresholdM {
		return segments
	}

	prev := segments[len(segments)-2]
	merged := AtomicSegment{
		StartIdx: prev.StartIdx,
		EndIdx:   last.EndIdx,
		Length:   prev.Length + last.Length,
		Surface:  prev.Surface,
		Crr:      prev.Crr,
	}
	totalEleDelta := prev.AvgGrade*prev.Length + last.AvgGrade*last.Length
	if merged.Length > 0 {
		merged.AvgGrade = totalEleDelta / merged.Length
	}
	merged.AvgHeading = weightedCircularMean(prev.AvgHeading, prev.Length, last.AvgHeading, last.Length)

	out := make([]AtomicSegment, len(segments)-1)
	copy(out, segments[:len(segments)-2])
	out[len(out)-1] = merged
	return out
}

func segmentGrade(points []course.TrackPoint, startIdx, endIdx int) float64 {
	dist := points[endIdx].Distance - points[startIdx].Distance
	if dist <= 0 {
		return 0
	}
	return (points[endIdx].Elevation - points[startIdx].Elevation) / dist
}

func clampGrade(g float64) float64 {
	if g < -course.MaxGrade {
		return -course.MaxGrade
	}
	if g > course.MaxGrade {
		return course.MaxGrade
	}
	return g
}

func angularDeltaDeg(a, b float64) float64 {
	diff := math.Mod(math.Abs(a-b), 2*math.Pi)
	if diff > math.Pi {
		diff = 2*math.Pi - diff
	}
	return diff * 180 / math.Pi
}

// circularMeanHeading computes the circular mean of headings across
// [startIdx, endIdx).
func circularMeanHeading(points []course.TrackPoint, startIdx, endIdx int) float64 {
	if endIdx <= startIdx {
		return points[startIdx].Heading
	}
	var sinSum, cosSum float64
	count := 0
	for i := startIdx; i < endIdx; i++ {
		sinSum += math.Sin(points[i].Heading)
		cosSum += math.Cos(points[i].Heading)
		count++
	}
	if count == 0 {
		return points[startIdx].Heading
	}
	return math.Mod(math.Atan2(sinSum, cosSum)+2*math.Pi, 2*math.Pi)
}

func weightedCircularMean(h1 float64, w1 float64, h2 float64, w2 float64) float64 {
	total := w1 + w2
	if total <= 0 {
		return h1
	}
	sinSum := math.Sin(h1)*w1 + math.Sin(h2)*w2
	cosSum := math.Cos(h1)*w1 + math.Cos(h2)*w2
	return math.Mod(math.Atan2(sinSum, cosSum)+2*math.Pi, 2*math.Pi)
}
