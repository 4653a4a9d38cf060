package solver

import (
	"context"
	"testing"

	"github.com/nick-riduck/bike-course-simulator/internal/course"
	"github.com/nick-riduck/bike-course-simulator/internal/drivetrain"
	"github.com/nick-riduck/bike-course-simulator/internal/environment"
	"github.com/nick-riduck/bike-course-simulator/internal/rider"
	"github.com/nick-riduck/bike-course-simulator/internal/segment"
)

// flatCourse10km builds a straight, level 10 km course of raw points
// spaced 10 m apart (S1: flat constant power).
func flatCourse10km() []course.RawPoint {
	const stepM = 10.0
	const totalM = 10000.0
	n := int(totalM/stepM) + 1
	points := make([]course.RawPoint, n)
	metersPerDegLat := 111320.0
	for i := 0; i < n; i++ {
		points[i] = course.RawPoint{
			Lat: float64(i) * stepM / metersPerDegLat,
			Lon: 0,
			Ele: 100,
		}
	}
	return points
}

func testRider(cp, wPrime float64) (*rider.Profile, error) {
	pdc := map[int]float64{
		60:   600,
		300:  350,
		1200: 280,
		3600: 258,
	}
	return rider.NewProfile(70, cp, wPrime, pdc, 8, 0.32, 0.004, drivetrain.Ultegra)
}

func TestSolve_FlatCourseFindsFeasibleBasePower(t *testing.T) {
	points, err := course.Load(flatCourse10km())
	if err != nil {
		t.Fatalf("course.Load: %v", err)
	}
	segs := segment.Segment(points, 0.004, nil)
	if len(segs) == 0 {
		t.Fatal("no segments produced")
	}

	profile, err := testRider(281, 20000)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	result, err := Solve(context.Background(), points, segs, profile, environment.DefaultConditions(), nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !result.Feasible {
		t.Fatal("expected a feasible trial on a flat 10km course")
	}
	if result.BasePowerW <= 0 {
		t.Errorf("BasePowerW = %v, want > 0", result.BasePowerW)
	}
	if result.Trial.Bonked {
		t.Error("feasible trial should not be bonked")
	}
}

func TestSolve_RespectsContextCancellation(t *testing.T) {
	points, err := course.Load(flatCourse10km())
	if err != nil {
		t.Fatalf("course.Load: %v", err)
	}
	segs := segment.Segment(points, 0.004, nil)
	profile, err := testRider(281, 20000)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Solve(ctx, points, segs, profile, environment.DefaultConditions(), nil, DefaultConfig())
	if err == nil && !result.Feasible {
		t.Fatal("expected either an error or a (possibly preliminary) result")
	}
	if result.Iterations != 0 {
		t.Errorf("Iterations = %v, want 0 on immediate cancellation", result.Iterations)
	}
}

func TestSolve_EmptyCourseErrors(t *testing.T) {
	profile, err := testRider(281, 20000)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if _, err := Solve(context.Background(), nil, nil, profile, environment.DefaultConditions(), nil, DefaultConfig()); err == nil {
		t.Fatal("expected error for empty course")
	}
}
