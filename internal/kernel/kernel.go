// Package kernel wires the Course Loader, Adaptive Segmenter, Rider
// Model, Pacing Strategy, Physics Kernel, Solver, and Result Aggregator
// into the single entry point external collaborators call (spec §2's
// control flow: Loader → Segmenter → (Rider, Pacing) ⇄ Physics ⇄ Solver
// → Aggregator).
package kernel

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nick-riduck/bike-course-simulator/internal/aggregate"
	"github.com/nick-riduck/bike-course-simulator/internal/course"
	"github.com/nick-riduck/bike-course-simulator/internal/drivetrain"
	"github.com/nick-riduck/bike-course-simulator/internal/environment"
	"github.com/nick-riduck/bike-course-simulator/internal/rider"
	"github.com/nick-riduck/bike-course-simulator/internal/segment"
	"github.com/nick-riduck/bike-course-simulator/internal/solver"
	"github.com/nick-riduck/bike-course-simulator/internal/usersegment"
)

// CourseInput carries either raw trackpoints or a pre-refined columnar
// payload's equivalent field set (spec §6). This module accepts the raw
// form; collaborators that hold refined columnar data flatten it into
// RawPoints before calling Simulate.
type CourseInput struct {
	Points       []course.RawPoint
	BaselineCrr  float64
	CrrBySurface map[string]float64 // optional surface -> Crr override table
}

// RiderInput is the spec §6 Rider payload.
type RiderInput struct {
	MassKg     float64
	CPW        float64
	WPrimeJ    float64
	PDC        map[int]float64
	CdAM2      float64
	Crr        float64
	BikeMassKg float64
	Drivetrain drivetrain.Key
}

// EnvironmentInput is the spec §6 Environment payload; a nil
// *EnvironmentInput in Request means the spec §6 defaults apply.
type EnvironmentInput struct {
	TemperatureC   float64
	AltitudeM      float64
	WindSpeedMps   float64
	WindBearingDeg float64
}

// Request bundles everything Simulate needs for one run (spec §6).
type Request struct {
	Course       CourseInput
	Rider        RiderInput
	Environment  *EnvironmentInput
	UserSegments []usersegment.Segment
	SolverConfig *solver.Config
	Deadline     time.Time // zero value means no deadline
}

// Result is the SimulationResult plus the run's identity and the
// solver's chosen base power (spec §3, §6).
type Result struct {
	RunID            string
	BasePowerW       float64
	DeadlineExceeded bool
	aggregate.Result
}

// Simulate runs the full pipeline for req (spec §2).
func Simulate(ctx context.Context, req Request) (Result, error) {
	points, err := course.Load(req.Course.Points)
	if err != nil {
		return Result{}, err
	}

	resolver := buildCrrResolver(req.Course.CrrBySurface)
	segs := segment.Segment(points, req.Course.BaselineCrr, resolver)

	profile, err := rider.NewProfile(
		req.Rider.MassKg,
		req.Rider.CPW,
		req.Rider.WPrimeJ,
		req.Rider.PDC,
		req.Rider.BikeMassKg,
		req.Rider.CdAM2,
		req.Rider.Crr,
		req.Rider.Drivetrain,
	)
	if err != nil {
		return Result{}, err
	}

	env := resolveEnvironment(req.Environment)

	cfg := solver.DefaultConfig()
	if req.SolverConfig != nil {
		cfg = *req.SolverConfig
	}

	runCtx := ctx
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	solved, err := solver.Solve(runCtx, points, segs, profile, env, req.UserSegments, cfg)
	result := buildResult(solved)
	if err != nil {
		// solved.Trial still holds the closest-to-feasible candidate the
		// binary search tried (solver.finish's "last" trial) even on an
		// InfeasibleCourse/DeadlineExceeded error (spec §7): surface it
		// in result rather than discarding it, so a caller can inspect
		// what the search almost achieved.
		return result, err
	}
	return result, nil
}

// buildResult aggregates a solver.Result into the kernel's Result shape.
// Called on both the success and error paths of Simulate so a rejected
// trial's samples and diagnostics still reach the caller.
func buildResult(solved solver.Result) Result {
	diag := aggregate.Diagnostics{
		SolverIterations: solved.Iterations,
		Converged:        solved.Converged,
		Feasible:         solved.Feasible,
	}
	agg := aggregate.Aggregate(solved.Trial.Samples, solved.Trial.WalkingDistanceM, solved.Trial.BrakingDistanceM, diag)

	return Result{
		RunID:            uuid.NewString(),
		BasePowerW:       solved.BasePowerW,
		DeadlineExceeded: solved.DeadlineExceeded,
		Result:           agg,
	}
}

func buildCrrResolver(bySurface map[string]float64) segment.CrrResolver {
	if len(bySurface) == 0 {
		return nil
	}
	return func(surface string) (float64, bool) {
		v, ok := bySurface[surface]
		return v, ok
	}
}

func resolveEnvironment(in *EnvironmentInput) environment.Conditions {
	if in == nil {
		return environment.DefaultConditions()
	}
	return environment.Conditions{
		TemperatureC: in.TemperatureC,
		WindSpeedMps: in.WindSpeedMps,
		WindBearing:  in.WindBearingDeg * math.Pi / 180,
		AltitudeM:    in.AltitudeM,
	}
}
