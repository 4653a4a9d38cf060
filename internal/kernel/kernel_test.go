package kernel

import (
	"context"
	"errors"
	"testing"

	"github.com/nick-riduck/bike-course-simulator/internal/course"
	"github.com/nick-riduck/bike-course-simulator/internal/drivetrain"
	"github.com/nick-riduck/bike-course-simulator/internal/kerr"
	"github.com/nick-riduck/bike-course-simulator/internal/solver"
)

func flatCourse(totalM, stepM float64) []course.RawPoint {
	n := int(totalM/stepM) + 1
	points := make([]course.RawPoint, n)
	metersPerDegLat := 111320.0
	for i := 0; i < n; i++ {
		points[i] = course.RawPoint{Lat: float64(i) * stepM / metersPerDegLat, Lon: 0, Ele: 100}
	}
	return points
}

func baseRiderInput() RiderInput {
	return RiderInput{
		MassKg:     70,
		CPW:        281,
		WPrimeJ:    20000,
		PDC:        map[int]float64{60: 600, 300: 350, 1200: 280, 3600: 258},
		CdAM2:      0.32,
		Crr:        0.004,
		BikeMassKg: 8,
		Drivetrain: drivetrain.Ultegra,
	}
}

func TestSimulate_FlatCourseProducesFeasibleFinish(t *testing.T) {
	req := Request{
		Course: CourseInput{Points: flatCourse(10000, 10), BaselineCrr: 0.004},
		Rider:  baseRiderInput(),
	}
	result, err := Simulate(context.Background(), req)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if result.RunID == "" {
		t.Error("expected a non-empty RunID")
	}
	if !result.Diagnostics.Feasible {
		t.Fatal("expected a feasible run on a flat 10km course")
	}
	if result.TotalTimeSec <= 0 {
		t.Errorf("TotalTimeSec = %v, want > 0", result.TotalTimeSec)
	}

	// Testable property 1: strictly non-decreasing dist_km and time_sec.
	lastDist, lastTime := -1.0, -1.0
	for _, s := range result.Samples {
		if s.DistKm < lastDist {
			t.Fatalf("DistKm decreased: %v after %v", s.DistKm, lastDist)
		}
		if s.TimeSec < lastTime {
			t.Fatalf("TimeSec decreased: %v after %v", s.TimeSec, lastTime)
		}
		lastDist, lastTime = s.DistKm, s.TimeSec
	}

	// Testable property 3: speed_kmh <= 100 everywhere.
	for _, s := range result.Samples {
		if s.SpeedKmh > 100.0+1e-6 {
			t.Errorf("SpeedKmh = %v, want <= 100", s.SpeedKmh)
		}
	}
}

func TestSimulate_RejectsMalformedCourse(t *testing.T) {
	req := Request{
		Course: CourseInput{Points: []course.RawPoint{{Lat: 0, Lon: 0, Ele: 0}}}, // single point
		Rider:  baseRiderInput(),
	}
	if _, err := Simulate(context.Background(), req); err == nil {
		t.Fatal("expected error for a single-point course")
	}
}

func TestSimulate_RejectsInvalidRider(t *testing.T) {
	badRider := baseRiderInput()
	badRider.CPW = 0
	req := Request{
		Course: CourseInput{Points: flatCourse(1000, 10), BaselineCrr: 0.004},
		Rider:  badRider,
	}
	if _, err := Simulate(context.Background(), req); err == nil {
		t.Fatal("expected error for CP <= 0")
	}
}

// On InfeasibleCourse/DeadlineExceeded, Simulate must still return a
// populated Result (spec §7: the closest-to-feasible trial attached)
// rather than the zero value, even though it also returns an error.
func TestSimulate_InfeasibleCourseStillReturnsPartialResult(t *testing.T) {
	cfg := solver.DefaultConfig()
	cfg.MaxIterations = 0 // force the solver to reject without trying a trial

	req := Request{
		Course:       CourseInput{Points: flatCourse(1000, 10), BaselineCrr: 0.004},
		Rider:        baseRiderInput(),
		SolverConfig: &cfg,
	}
	result, err := Simulate(context.Background(), req)
	if err == nil {
		t.Fatal("expected an InfeasibleCourse error with MaxIterations = 0")
	}
	var kernelErr *kerr.Error
	if !errors.As(err, &kernelErr) || kernelErr.Code != kerr.InfeasibleCourse {
		t.Fatalf("err = %v, want an InfeasibleCourse *kerr.Error", err)
	}
	if result.RunID == "" {
		t.Error("expected a non-empty RunID even on an infeasible run")
	}
	if result.Diagnostics.Feasible {
		t.Error("expected Diagnostics.Feasible = false")
	}
}

func TestSimulate_HikeABikeWalksOnSteepGrade(t *testing.T) {
	// 500m climbing at +18% grade (S3).
	const totalM = 500.0
	const stepM = 10.0
	metersPerDegLat := 111320.0
	n := int(totalM/stepM) + 1
	points := make([]course.RawPoint, n)
	for i := 0; i < n; i++ {
		points[i] = course.RawPoint{
			Lat: float64(i) * stepM / metersPerDegLat,
			Lon: 0,
			Ele: float64(i) * stepM * 0.18,
		}
	}

	riderIn := baseRiderInput()
	riderIn.MassKg = 85

	req := Request{
		Course: CourseInput{Points: points, BaselineCrr: 0.004},
		Rider:  riderIn,
	}
	result, err := Simulate(context.Background(), req)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if result.Diagnostics.WalkingDistanceM <= 0 {
		t.Error("expected non-zero walking distance on an 18% grade climb")
	}
}
