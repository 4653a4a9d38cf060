// Package physics implements the per-segment force/energy balance that
// advances a rider's speed and time across one AtomicSegment (spec §4.4).
package physics

import (
	"math"

	"github.com/nick-riduck/bike-course-simulator/internal/kerr"
)

// Gravity is g (spec §6).
const Gravity = 9.798

// Speed thresholds and force caps from spec §4.4/§4.6.
const (
	coldStartThresholdMps = 3 * kmhToMps
	walkingSpeedMps       = 5 * kmhToMps
	defaultBrakeSpeedMps  = 65 * kmhToMps
	brakeTriggerSpeedMps  = 50 * kmhToMps
	absoluteMaxSpeedMps   = 100 * kmhToMps
	epsSpeedMps           = 0.2

	walkingPowerW = 30.0
)

const kmhToMps = 1000.0 / 3600.0

// Input bundles everything the force balance needs for one AtomicSegment
// advance (spec §4.4).
type Input struct {
	EntrySpeedMps float64
	LengthM       float64
	Grade         float64 // ratio, already clamped to ±0.25
	TargetPowerW  float64
	WindMps       float64 // along travel direction, positive = headwind
	Crr           float64
	AirDensity    float64
	TotalMassKg   float64
	CdA           float64
	Efficiency    func(powerW float64) float64
	BrakeSpeedMps float64 // V_BRAKE; 0 means use defaultBrakeSpeedMps
}

// State is the per-step State Machine label (spec §4.4's state machine).
type State string

const (
	StateCruise  State = "CRUISE"
	StateCold    State = "COLD_START"
	StateWalk    State = "WALK"
	StateBraking State = "BRAKING"
)

// Output is the result of advancing one AtomicSegment.
type Output struct {
	ExitSpeedMps float64
	ElapsedS     float64
	ActualPowerW float64
	State        State
	Walking      bool
}

// forceBalance holds the gravity/rolling/aero decomposition at a given
// representative speed, mirroring the teacher engine's force split.
type forceBalance struct {
	gravity, rolling float64
}

func resolveForces(in Input) forceBalance {
	sinTheta := in.Grade / math.Sqrt(1+in.Grade*in.Grade)
	cosTheta := 1 / math.Sqrt(1+in.Grade*in.Grade)
	return forceBalance{
		gravity: in.TotalMassKg * Gravity * sinTheta,
		rolling: in.TotalMassKg * Gravity * cosTheta * in.Crr,
	}
}

func aeroForce(in Input, v float64) float64 {
	rel := v + in.WindMps
	return 0.5 * in.AirDensity * in.CdA * rel * math.Abs(rel)
}

// subChunkMaxM bounds the length of a single force-balance solve. A
// segmenter tail fragment can exceed the nominal atomic-segment length
// when no grade/heading/length trigger fires before the course ends;
// solving that in one shot risks the same instability the prototype's
// sub-chunking guarded against, so Advance splits it into nominal-sized
// pieces and chains the solve across them instead.
const subChunkMaxM = 20.0

// Advance runs one AtomicSegment's force balance, applying the
// cold-start, walking, and braking safeguards in spec order (spec §4.4
// step 7) before re-deriving actual delivered power (step 8).
func Advance(in Input) (Output, error) {
	brakeSpeed := in.BrakeSpeedMps
	if brakeSpeed <= 0 {
		brakeSpeed = defaultBrakeSpeedMps
	}

	if in.LengthM > subChunkMaxM {
		return advanceChunked(in, brakeSpeed)
	}
	return advanceOne(in, brakeSpeed)
}

func advanceOne(in Input, brakeSpeed float64) (Output, error) {
	if in.EntrySpeedMps < coldStartThresholdMps {
		return advanceColdStart(in, brakeSpeed)
	}
	return advanceCruise(in, brakeSpeed)
}

// advanceChunked re-solves a longer-than-nominal segment as a chain of
// equal sub-chunks no longer than subChunkMaxM, threading exit speed
// from one chunk into the next and folding the per-chunk outputs into
// one TrackSample-equivalent Output for the caller.
func advanceChunked(in Input, brakeSpeed float64) (Output, error) {
	n := int(math.Ceil(in.LengthM / subChunkMaxM))
	chunkLen := in.LengthM / float64(n)

	v := in.EntrySpeedMps
	var totalElapsed, totalWork float64
	var state State
	walking := false
	braking := false

	for i := 0; i < n; i++ {
		sub := in
		sub.EntrySpeedMps = v
		sub.LengthM = chunkLen

		out, err := advanceOne(sub, brakeSpeed)
		if err != nil {
			return Output{}, err
		}

		v = out.ExitSpeedMps
		totalElapsed += out.ElapsedS
		totalWork += out.ActualPowerW * out.ElapsedS
		state = out.State
		if out.Walking {
			walking = true
		}
		if out.State == StateBraking {
			braking = true
		}
	}

	actualPower := 0.0
	if totalElapsed > 0 {
		actualPower = totalWork / totalElapsed
	}
	if walking {
		state = StateWalk
	} else if braking {
		state = StateBraking
	}

	return Output{
		ExitSpeedMps: v,
		ElapsedS:     totalElapsed,
		ActualPowerW: actualPower,
		State:        state,
		Walking:      walking,
	}, nil
}

func advanceCruise(in Input, brakeSpeed float64) (Output, error) {
	fb := resolveForces(in)
	v := in.EntrySpeedMps
	fAero := aeroForce(in, v)
	fResist := fb.gravity + fb.rolling + fAero

	eta := in.Efficiency(in.TargetPowerW)
	denom := math.Max(v, epsSpeedMps)
	fProp := eta * in.TargetPowerW / denom

	fMax := 1.5 * in.TotalMassKg * Gravity
	fPropCapped := math.Min(fProp, fMax)

	accel := (fPropCapped - fResist) / in.TotalMassKg
	if !finite(accel) {
		return Output{}, kerr.New(kerr.NumericalInstability, errNonFinite("acceleration"))
	}

	vFinalSq := in.EntrySpeedMps*in.EntrySpeedMps + 2*accel*in.LengthM
	if vFinalSq < 0 {
		vFinalSq = 0
	}
	vFinal := math.Sqrt(vFinalSq)

	if !finite(vFinal) {
		return Output{}, kerr.New(kerr.NumericalInstability, errNonFinite("exit speed"))
	}

	elapsed := elapsedTime(in.EntrySpeedMps, vFinal, in.LengthM)
	state := StateCruise

	vFinal, elapsed, walking, braking := applySafeguards(in, vFinal, elapsed, brakeSpeed)
	if walking {
		state = StateWalk
	} else if braking {
		state = StateBraking
	}

	fResistAvg := fb.gravity + fb.rolling + aeroForce(in, (in.EntrySpeedMps+vFinal)/2)
	actualPower := derivePower(fPropCapped, fResistAvg, in.LengthM, elapsed, walking)

	return Output{
		ExitSpeedMps: vFinal,
		ElapsedS:     elapsed,
		ActualPowerW: actualPower,
		State:        state,
		Walking:      walking,
	}, nil
}

// advanceColdStart replaces the force-balance advance with a
// Newton-Raphson steady-state solve (spec §4.4's cold-start fallback),
// mirroring the teacher's bisection-based equilibrium search but solving
// the nonlinear equation directly as the spec mandates.
func advanceColdStart(in Input, brakeSpeed float64) (Output, error) {
	fb := resolveForces(in)
	eta := in.Efficiency(in.TargetPowerW)
	target := eta * in.TargetPowerW

	// f(v) = v*(0.5*rho*CdA*(v+wind)*|v+wind| + rolling + gravity) - target
	f := func(v float64) float64 {
		rel := v + in.WindMps
		return v*(0.5*in.AirDensity*in.CdA*rel*math.Abs(rel)+fb.rolling+fb.gravity) - target
	}
	df := func(v float64) float64 {
		const h = 1e-4
		return (f(v+h) - f(v-h)) / (2 * h)
	}

	v := 20 * kmhToMps
	converged := false
	for i := 0; i < 10; i++ {
		fv := f(v)
		if math.Abs(fv) < 1e-6 {
			converged = true
			break
		}
		deriv := df(v)
		if deriv == 0 || !finite(deriv) {
			break
		}
		next := v - fv/deriv
		if !finite(next) || next < 0 {
			break
		}
		if math.Abs(next-v) < 0.05 {
			v = next
			converged = true
			break
		}
		v = next
	}
	if !converged {
		v = 0
	}

	// Convert the converged steady-state wheel power back into a
	// propulsive force, the same way advanceCruise derives fProp from
	// eta*TargetPowerW, so derivePower's force-based work integral
	// (spec §4.4 step 8) isn't fed a Watts value where it expects Newtons.
	denom := math.Max(v, epsSpeedMps)
	fProp := target / denom
	fMax := 1.5 * in.TotalMassKg * Gravity
	fPropCapped := math.Min(fProp, fMax)

	// Elapsed time for the ramp-up uses the same trapezoidal average as
	// advanceCruise (entry speed to vFinal), not length/vFinal alone:
	// at the converged root fProp == fResist(vFinal), so step 8's
	// (F_prop_capped + F_resist_avg)·d sum is 2*fProp*d, and only the
	// trapezoidal Δt (which is itself 2*d/vFinal from a standstill)
	// brings P_actual back down to the single target power actually
	// delivered instead of double-counting it.
	vFinal := v
	elapsed := elapsedTime(in.EntrySpeedMps, vFinal, in.LengthM)

	state := StateCold
	walking := false
	braking := false
	vFinal, elapsed, walking, braking = applySafeguards(in, vFinal, elapsed, brakeSpeed)
	if walking {
		state = StateWalk
	} else if braking {
		state = StateBraking
	}

	fResistAvg := fb.gravity + fb.rolling + aeroForce(in, vFinal)
	actualPower := derivePower(fPropCapped, fResistAvg, in.LengthM, elapsed, walking)

	return Output{
		ExitSpeedMps: vFinal,
		ElapsedS:     elapsed,
		ActualPowerW: actualPower,
		State:        state,
		Walking:      walking,
	}, nil
}

// applySafeguards applies the walking clamp, soft-wall brake, and
// absolute speed cap in spec order (spec §4.4 step 7), recomputing
// elapsed time whenever the exit speed is overridden.
func applySafeguards(in Input, vFinal, elapsed, brakeSpeed float64) (float64, float64, bool, bool) {
	walking := false
	braking := false

	if vFinal < walkingSpeedMps && in.Grade > 0 {
		vFinal = walkingSpeedMps
		elapsed = elapsedTime(in.EntrySpeedMps, vFinal, in.LengthM)
		walking = true
	}

	if !walking && vFinal > brakeTriggerSpeedMps && in.Grade < 0 && in.TargetPowerW == 0 {
		if vFinal > brakeSpeed {
			vFinal = brakeSpeed
			elapsed = elapsedTime(in.EntrySpeedMps, vFinal, in.LengthM)
		}
		braking = true
	}

	if vFinal > absoluteMaxSpeedMps {
		vFinal = absoluteMaxSpeedMps
		elapsed = elapsedTime(in.EntrySpeedMps, vFinal, in.LengthM)
	}

	return vFinal, elapsed, walking, braking
}

func elapsedTime(v0, v1, length float64) float64 {
	avg := (v0 + v1) / 2
	if avg <= 0 {
		return 0
	}
	return 2 * length / (v0 + v1)
}

func derivePower(fPropCapped, fResistAvg, length, elapsed float64, walking bool) float64 {
	if walking {
		return walkingPowerW
	}
	if elapsed <= 0 {
		return 0
	}
	workActual := (fPropCapped + fResistAvg) * length
	return workActual / elapsed
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func errNonFinite(what string) error {
	return &nonFiniteError{what: what}
}

type nonFiniteError struct{ what string }

func (e *nonFiniteError) Error() string { return "physics: non-finite " + e.what }
