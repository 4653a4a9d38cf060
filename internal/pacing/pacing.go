// Package pacing implements the three-regime target-power policy (spec
// §4.5) that turns a candidate base power and local grade into a
// per-segment target power for the physics kernel.
package pacing

import "math"

// AggressiveUphillAlpha is α_up (spec §4.5).
const AggressiveUphillAlpha = 2.5

// MomentumGradeFloor is the lower bound of the momentum regime's grade
// band (spec §4.5): −0.02 ≤ g ≤ 0.
const MomentumGradeFloor = -0.02

// MomentumTargetSpeedMps is the momentum regime's reference speed (35
// km/h, spec §4.5).
const MomentumTargetSpeedMps = 35.0 * 1000.0 / 3600.0

// MomentumMinFraction is the momentum regime's floor as a fraction of
// P_base (spec §4.5).
const MomentumMinFraction = 0.8

// Context carries the forces needed to solve for the momentum regime's
// "power needed for 35 km/h" term, mirroring the physics package's
// force balance without importing it (kept decoupled from physics to
// avoid a layering cycle: physics calls into pacing indirectly via the
// solver, not the other way around).
type Context struct {
	Grade       float64
	WindMps     float64
	Crr         float64
	AirDensity  float64
	TotalMassKg float64
	CdA         float64
	Efficiency  func(powerW float64) float64
}

const gravity = 9.798

// powerForSpeed returns the power (at the wheel, before dividing by
// efficiency) needed to sustain speedMps on ctx's grade/forces.
func powerForSpeed(ctx Context, speedMps float64) float64 {
	sinTheta := ctx.Grade / math.Sqrt(1+ctx.Grade*ctx.Grade)
	cosTheta := 1 / math.Sqrt(1+ctx.Grade*ctx.Grade)
	fGravity := ctx.TotalMassKg * gravity * sinTheta
	fRolling := ctx.TotalMassKg * gravity * cosTheta * ctx.Crr
	rel := speedMps + ctx.WindMps
	fAero := 0.5 * ctx.AirDensity * ctx.CdA * rel * math.Abs(rel)
	fResist := fGravity + fRolling + fAero
	wheelPower := fResist * speedMps
	if wheelPower < 0 {
		wheelPower = 0
	}
	eta := ctx.Efficiency(wheelPower)
	if eta <= 0 {
		return wheelPower
	}
	return wheelPower / eta
}

// TargetPower computes the raw (pre-cap) target power for baseW and the
// segment described by ctx (spec §4.5's three-regime table).
func TargetPower(baseW float64, ctx Context) float64 {
	switch {
	case ctx.Grade > 0:
		return baseW * (1 + AggressiveUphillAlpha*ctx.Grade)
	case ctx.Grade >= MomentumGradeFloor:
		needed := powerForSpeed(ctx, MomentumTargetSpeedMps)
		return math.Max(MomentumMinFraction*baseW, needed)
	default:
		return 0
	}
}

// Clamp applies the duration-dependent ceiling (spec §4.5): target power
// is clamped from above by capFactor·cp.
func Clamp(targetW, capFactor, cp float64) float64 {
	ceiling := capFactor * cp
	if targetW > ceiling {
		return ceiling
	}
	return targetW
}

// Plan resolves the final per-segment target power, honoring a
// UserSegment override when present (spec §6: "if target_power_w is
// present ... the pacing strategy's output ... is overridden").
func Plan(baseW float64, ctx Context, capFactor, cp float64, overrideW *float64) float64 {
	if overrideW != nil {
		return *overrideW
	}
	return Clamp(TargetPower(baseW, ctx), capFactor, cp)
}
