// Package solver implements the Pacing Optimizer (spec §4.6): a binary
// search over the base power P_base that drives the Physics Kernel and
// Pacing Strategy across a full course, subject to a W′-balance
// feasibility constraint and the rider's PDC.
package solver

import (
	"context"

	"github.com/nick-riduck/bike-course-simulator/internal/aggregate"
	"github.com/nick-riduck/bike-course-simulator/internal/course"
	"github.com/nick-riduck/bike-course-simulator/internal/environment"
	"github.com/nick-riduck/bike-course-simulator/internal/kerr"
	"github.com/nick-riduck/bike-course-simulator/internal/pacing"
	"github.com/nick-riduck/bike-course-simulator/internal/physics"
	"github.com/nick-riduck/bike-course-simulator/internal/rider"
	"github.com/nick-riduck/bike-course-simulator/internal/segment"
	"github.com/nick-riduck/bike-course-simulator/internal/usersegment"
)

// Config bounds the binary search (spec §4.6).
type Config struct {
	MinPowerW     float64
	MaxPowerW     float64
	MaxIterations int
	ConvergenceW  float64
	ToleranceW    float64
	BrakeSpeedMps float64 // 0 means the physics package's default V_BRAKE
}

// DefaultConfig returns the spec §4.6 search bounds.
func DefaultConfig() Config {
	return Config{
		MinPowerW:     10,
		MaxPowerW:     1500,
		MaxIterations: 30,
		ConvergenceW:  0.1,
		ToleranceW:    0.5,
	}
}

// Trial is one binary-search candidate's full forward integration.
type Trial struct {
	Samples          []aggregate.Sample
	FinishTimeS      float64
	NormalizedPowerW float64
	Bonked           bool
	WalkingDistanceM float64
	BrakingDistanceM float64
}

// Result is the solver's outcome (spec §4.6, §6 diagnostics).
type Result struct {
	BasePowerW       float64
	Trial            Trial
	Iterations       int
	Converged        bool
	Feasible         bool
	DeadlineExceeded bool
}

const initialSpeedEstimateKmh = 25.0

// Solve binary-searches P_base over points/segs for profile under env,
// honoring any userSegs target-power overrides, and stops at cfg's
// iteration cap, convergence threshold, or ctx's deadline — whichever
// comes first (spec §5: cooperative cancellation at iteration boundaries).
func Solve(ctx context.Context, points []course.TrackPoint, segs []segment.AtomicSegment, profile *rider.Profile, env environment.Conditions, userSegs []usersegment.Segment, cfg Config) (Result, error) {
	if len(points) == 0 || len(segs) == 0 {
		return Result{}, kerr.New(kerr.EmptyCourse, errNoSegments)
	}

	totalDistM := points[len(points)-1].Distance
	estFinishTimeH := (totalDistM / 1000.0) / initialSpeedEstimateKmh

	lo, hi := cfg.MinPowerW, cfg.MaxPowerW
	var best *Trial
	var bestBase float64
	var lastTrial Trial
	iterations := 0
	converged := false

	for iterations = 0; iterations < cfg.MaxIterations; iterations++ {
		if err := ctx.Err(); err != nil {
			return finish(best, bestBase, lastTrial, iterations, converged, true)
		}

		mid := (lo + hi) / 2
		trial, err := runTrial(points, segs, profile, env, userSegs, mid, estFinishTimeH, cfg.BrakeSpeedMps)
		if err != nil {
			// NumericalInstability that survives the physics kernel's own
			// safeguards: reject this trial and narrow toward lower power.
			hi = mid
			if hi-lo <= cfg.ConvergenceW {
				converged = true
				iterations++
				break
			}
			continue
		}
		lastTrial = trial

		limit := profile.PDC.LimitPower(trial.FinishTimeS)
		feasible := !trial.Bonked && trial.NormalizedPowerW <= limit+cfg.ToleranceW

		if feasible {
			t := trial
			best = &t
			bestBase = mid
			if trial.FinishTimeS > 0 {
				estFinishTimeH = trial.FinishTimeS / 3600.0
			}
			lo = mid
		} else {
			hi = mid
		}

		if hi-lo <= cfg.ConvergenceW {
			converged = true
			iterations++
			break
		}
	}

	return finish(best, bestBase, lastTrial, iterations, converged, false)
}

func finish(best *Trial, bestBase float64, last Trial, iterations int, converged, deadlineHit bool) (Result, error) {
	if best == nil {
		res := Result{
			Trial:            last,
			Iterations:       iterations,
			Converged:        converged,
			Feasible:         false,
			DeadlineExceeded: deadlineHit,
		}
		if deadlineHit {
			return res, kerr.New(kerr.DeadlineExceeded, errNoFeasibleTrial)
		}
		return res, kerr.New(kerr.InfeasibleCourse, errNoFeasibleTrial)
	}
	return Result{
		BasePowerW:       bestBase,
		Trial:            *best,
		Iterations:       iterations,
		Converged:        converged,
		Feasible:         true,
		DeadlineExceeded: deadlineHit,
	}, nil
}

// runTrial performs one full forward integration at a fixed base power,
// wiring the Pacing Strategy, Physics Kernel, and the rider's W′-balance
// update together one AtomicSegment at a time (spec §4).
func runTrial(points []course.TrackPoint, segs []segment.AtomicSegment, profile *rider.Profile, env environment.Conditions, userSegs []usersegment.Segment, baseW, estFinishTimeH, brakeSpeedMps float64) (Trial, error) {
	samples := make([]aggregate.Sample, 0, len(segs))
	v := 0.0
	wPrime := profile.WPrimeJ
	bonked := false
	var walkingDistM, brakingDistM, finishTimeS float64

	rho := env.AirDensity()
	capFactor := rider.DurationCapFactor(estFinishTimeH)

	for _, seg := range segs {
		startDistM := points[seg.StartIdx].Distance
		endPoint := points[seg.EndIdx]
		segID, overrideW := usersegment.Resolve(userSegs, startDistM)

		wind := env.WindComponent(seg.AvgHeading)

		pctx := pacing.Context{
			Grade:       seg.AvgGrade,
			WindMps:     wind,
			Crr:         seg.Crr,
			AirDensity:  rho,
			TotalMassKg: profile.TotalMassKg(),
			CdA:         profile.CdA,
			Efficiency:  profile.Efficiency,
		}
		targetW := pacing.Plan(baseW, pctx, capFactor, profile.CP, overrideW)

		out, err := physics.Advance(physics.Input{
			EntrySpeedMps: v,
			LengthM:       seg.Length,
			Grade:         seg.AvgGrade,
			TargetPowerW:  targetW,
			WindMps:       wind,
			Crr:           seg.Crr,
			AirDensity:    rho,
			TotalMassKg:   profile.TotalMassKg(),
			CdA:           profile.CdA,
			Efficiency:    profile.Efficiency,
			BrakeSpeedMps: brakeSpeedMps,
		})
		if err != nil {
			return Trial{}, err
		}

		wPrime = rider.UpdateWPrime(profile.WPrimeJ, wPrime, profile.CP, out.ActualPowerW, out.ElapsedS)
		v = out.ExitSpeedMps
		finishTimeS += out.ElapsedS

		if out.Walking {
			walkingDistM += seg.Length
		}
		if out.State == physics.StateBraking {
			brakingDistM += seg.Length
		}

		samples = append(samples, aggregate.Sample{
			DistanceM:    endPoint.Distance,
			ElevationM:   endPoint.Elevation,
			ExitSpeedMps: out.ExitSpeedMps,
			ActualPowerW: out.ActualPowerW,
			ElapsedS:     out.ElapsedS,
			WPrimeJ:      wPrime,
			Walking:      out.Walking,
			UserSegID:    segID,
		})

		if rider.IsBonked(wPrime) {
			bonked = true
			break
		}
	}

	powers := make([]float64, len(samples))
	weights := make([]float64, len(samples))
	for i, s := range samples {
		powers[i] = s.ActualPowerW
		weights[i] = s.ElapsedS
	}

	return Trial{
		Samples:          samples,
		FinishTimeS:      finishTimeS,
		NormalizedPowerW: aggregate.NormalizedPower(powers, weights),
		Bonked:           bonked,
		WalkingDistanceM: walkingDistM,
		BrakingDistanceM: brakingDistM,
	}, nil
}
