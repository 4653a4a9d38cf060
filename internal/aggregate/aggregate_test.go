package aggregate

import (
	"math"
	"testing"
)

func TestNormalizedPower_ConstantPowerEqualsAveragePower(t *testing.T) {
	powers := make([]float64, 60)
	weights := make([]float64, 60)
	for i := range powers {
		powers[i] = 200
		weights[i] = 1
	}
	np := NormalizedPower(powers, weights)
	if math.Abs(np-200) > 1e-6 {
		t.Errorf("NormalizedPower(constant 200W) = %v, want 200", np)
	}
}

func TestNormalizedPower_VariablePowerExceedsAverage(t *testing.T) {
	powers := make([]float64, 120)
	weights := make([]float64, 120)
	for i := range powers {
		weights[i] = 1
		if i%2 == 0 {
			powers[i] = 50
		} else {
			powers[i] = 350
		}
	}
	np := NormalizedPower(powers, weights)
	if np <= 200 {
		t.Errorf("NormalizedPower(variable) = %v, want > arithmetic mean 200", np)
	}
}

func TestAggregate_MonotoneDistanceAndTime(t *testing.T) {
	samples := []Sample{
		{DistanceM: 20, ElevationM: 100, ExitSpeedMps: 8, ActualPowerW: 200, ElapsedS: 2.5},
		{DistanceM: 40, ElevationM: 101, ExitSpeedMps: 8.2, ActualPowerW: 205, ElapsedS: 2.4},
		{DistanceM: 60, ElevationM: 99, ExitSpeedMps: 8.1, ActualPowerW: 198, ElapsedS: 2.45},
	}
	result := Aggregate(samples, 0, 0, Diagnostics{})

	lastDist, lastTime := -1.0, -1.0
	for _, s := range result.Samples {
		if s.DistKm < lastDist {
			t.Fatalf("DistKm not monotone: %v after %v", s.DistKm, lastDist)
		}
		if s.TimeSec < lastTime {
			t.Fatalf("TimeSec not monotone: %v after %v", s.TimeSec, lastTime)
		}
		lastDist, lastTime = s.DistKm, s.TimeSec
	}
	if result.TotalTimeSec != 2.5+2.4+2.45 {
		t.Errorf("TotalTimeSec = %v, want %v", result.TotalTimeSec, 2.5+2.4+2.45)
	}
}

func TestAggregate_UserSegmentRollup(t *testing.T) {
	samples := []Sample{
		{DistanceM: 20, ExitSpeedMps: 8, ActualPowerW: 200, ElapsedS: 2, UserSegID: "seg-1"},
		{DistanceM: 40, ExitSpeedMps: 9, ActualPowerW: 220, ElapsedS: 2, UserSegID: "seg-1"},
		{DistanceM: 60, ExitSpeedMps: 7, ActualPowerW: 180, ElapsedS: 2, UserSegID: "seg-2"},
	}
	result := Aggregate(samples, 0, 0, Diagnostics{})
	if len(result.PerUserSegment) != 2 {
		t.Fatalf("PerUserSegment has %d entries, want 2", len(result.PerUserSegment))
	}
	seg1 := result.PerUserSegment[0]
	if seg1.ID != "seg-1" || math.Abs(seg1.AvgPowerW-210) > 1e-9 {
		t.Errorf("seg-1 rollup = %+v, want AvgPowerW 210", seg1)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	result := Aggregate(nil, 0, 0, Diagnostics{})
	if result.TotalTimeSec != 0 || len(result.Samples) != 0 {
		t.Errorf("Aggregate(nil) = %+v, want zero result", result)
	}
}
