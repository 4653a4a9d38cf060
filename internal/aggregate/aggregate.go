// Package aggregate implements the Result Aggregator (spec §4 item 7):
// it turns a completed trial's per-AtomicSegment outputs into the
// TrackSample sequence and SimulationResult aggregates (spec §3, §6).
package aggregate

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// rollingWindowS is the Normalized Power rolling window (spec glossary: NP).
const rollingWindowS = 30.0

// Sample is one AtomicSegment-boundary record, the input unit the
// aggregator consumes (spec §3's TrackSample, pre-unit-conversion).
type Sample struct {
	DistanceM    float64
	ElevationM   float64
	ExitSpeedMps float64
	ActualPowerW float64
	ElapsedS     float64 // this sample's own Δt, for rolling-window weighting
	WPrimeJ      float64
	Walking      bool
	UserSegID    string // "" if not covered by any UserSegment
}

// TrackSample is the spec §6 output record, one per AtomicSegment boundary.
type TrackSample struct {
	DistKm    float64
	EleM      float64
	SpeedKmh  float64
	PowerW    float64
	TimeSec   float64
	WPrimeJ   float64
	Walking   bool
}

// UserSegmentRollup is one entry of SimulationResult.per_user_segment (spec §6).
type UserSegmentRollup struct {
	ID          string
	DurationS   float64
	AvgPowerW   float64
	AvgSpeedKmh float64
}

// Diagnostics mirrors spec §6's diagnostics block.
type Diagnostics struct {
	SolverIterations int
	Converged        bool
	Feasible         bool
	WalkingDistanceM float64
	BrakingDistanceM float64
}

// Result is the SimulationResult (spec §3, §6).
type Result struct {
	TotalTimeSec     float64
	AvgSpeedKmh      float64
	AvgPowerW        float64
	NormalizedPowerW float64
	WorkKJ           float64
	DistanceKm       float64
	ElevationGainM   float64
	PerUserSegment   []UserSegmentRollup
	Samples          []TrackSample
	Diagnostics      Diagnostics
}

// Aggregate folds a trial's ordered samples (strictly increasing
// cumulative time, per spec §5's ordering guarantee) into a Result.
// brakingFn reports whether a sample's state was the physics kernel's
// braking state; the aggregator itself only sees the walking flag
// directly, so braking distance is threaded in separately by the caller.
func Aggregate(samples []Sample, walkingDistanceM, brakingDistanceM float64, diag Diagnostics) Result {
	if len(samples) == 0 {
		return Result{Diagnostics: diag}
	}

	trackSamples := make([]TrackSample, len(samples))
	cumTime := 0.0
	cumDist := 0.0
	var workJ float64
	elevGain := 0.0
	prevEle := samples[0].ElevationM

	powers := make([]float64, len(samples))
	weights := make([]float64, len(samples))

	segRollups := map[string]*UserSegmentRollup{}
	segOrder := []string{}

	for i, s := range samples {
		cumTime += s.ElapsedS
		cumDist = s.DistanceM
		workJ += s.ActualPowerW * s.ElapsedS

		if s.ElevationM > prevEle {
			elevGain += s.ElevationM - prevEle
		}
		prevEle = s.ElevationM

		trackSamples[i] = TrackSample{
			DistKm:   cumDist / 1000.0,
			EleM:     s.ElevationM,
			SpeedKmh: s.ExitSpeedMps * 3.6,
			PowerW:   s.ActualPowerW,
			TimeSec:  cumTime,
			WPrimeJ:  s.WPrimeJ,
			Walking:  s.Walking,
		}

		powers[i] = s.ActualPowerW
		weights[i] = s.ElapsedS

		if s.UserSegID != "" {
			r, ok := segRollups[s.UserSegID]
			if !ok {
				r = &UserSegmentRollup{ID: s.UserSegID}
				segRollups[s.UserSegID] = r
				segOrder = append(segOrder, s.UserSegID)
			}
			r.DurationS += s.ElapsedS
			r.AvgPowerW += s.ActualPowerW * s.ElapsedS
			r.AvgSpeedKmh += s.ExitSpeedMps * 3.6 * s.ElapsedS
		}
	}

	totalTime := cumTime
	avgPower := 0.0
	if totalTime > 0 {
		avgPower = workJ / totalTime
	}
	avgSpeed := 0.0
	if totalTime > 0 {
		avgSpeed = (cumDist / 1000.0) / (totalTime / 3600.0)
	}

	rollups := make([]UserSegmentRollup, 0, len(segOrder))
	for _, id := range segOrder {
		r := segRollups[id]
		if r.DurationS > 0 {
			r.AvgPowerW /= r.DurationS
			r.AvgSpeedKmh /= r.DurationS
		}
		rollups = append(rollups, *r)
	}

	diag.WalkingDistanceM = walkingDistanceM
	diag.BrakingDistanceM = brakingDistanceM

	return Result{
		TotalTimeSec:     totalTime,
		AvgSpeedKmh:      avgSpeed,
		AvgPowerW:        avgPower,
		NormalizedPowerW: NormalizedPower(powers, weights),
		WorkKJ:           workJ / 1000.0,
		DistanceKm:       cumDist / 1000.0,
		ElevationGainM:   elevGain,
		PerUserSegment:   rollups,
		Samples:          trackSamples,
		Diagnostics:      diag,
	}
}

// NormalizedPower computes NP from a per-sample actual-power series and
// its elapsed-time weights (spec glossary: "fourth-root mean of the
// fourth power of a 30-second rolling average of actual power"). The
// rolling average is time-weighted and only ever looks backward (spec
// §5: "never uses future state").
func NormalizedPower(powersW, elapsedS []float64) float64 {
	n := len(powersW)
	if n == 0 {
		return 0
	}

	rolling := make([]float64, n)
	start := 0
	windowSum := 0.0
	windowDur := 0.0
	cumTime := make([]float64, n)
	t := 0.0
	for i := 0; i < n; i++ {
		t += elapsedS[i]
		cumTime[i] = t
	}
	for i := 0; i < n; i++ {
		windowSum += powersW[i] * elapsedS[i]
		windowDur += elapsedS[i]
		for start < i && cumTime[i]-cumTime[start] > rollingWindowS {
			windowSum -= powersW[start] * elapsedS[start]
			windowDur -= elapsedS[start]
			start++
		}
		if windowDur > 0 {
			rolling[i] = windowSum / windowDur
		}
	}

	fourth := make([]float64, n)
	for i, r := range rolling {
		fourth[i] = r * r * r * r
	}
	meanFourth := stat.Mean(fourth, elapsedS)
	if meanFourth < 0 || math.IsNaN(meanFourth) {
		return 0
	}
	return math.Pow(meanFourth, 0.25)
}
