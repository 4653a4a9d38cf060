package pacing

import (
	"math"
	"testing"
)

func baseCtx(grade float64) Context {
	return Context{
		Grade:       grade,
		Crr:         0.004,
		AirDensity:  1.225,
		TotalMassKg: 79,
		CdA:         0.32,
		Efficiency:  func(float64) float64 { return 0.963 },
	}
}

func TestTargetPower_AggressiveUphill(t *testing.T) {
	got := TargetPower(200, baseCtx(0.06))
	want := 200 * (1 + AggressiveUphillAlpha*0.06)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("TargetPower(uphill) = %v, want %v", got, want)
	}
}

func TestTargetPower_MomentumFloor(t *testing.T) {
	// On a flat with a very low base power, momentum should floor at the
	// power needed for 35 km/h rather than at 0.8*base.
	got := TargetPower(10, baseCtx(0))
	if got <= 0.8*10 {
		t.Errorf("TargetPower(momentum) = %v, want > 0.8*base (momentum floor should dominate)", got)
	}
}

func TestTargetPower_RecoveryCoasts(t *testing.T) {
	if got := TargetPower(300, baseCtx(-0.05)); got != 0 {
		t.Errorf("TargetPower(steep descent) = %v, want 0", got)
	}
}

func TestClamp_AppliesCeiling(t *testing.T) {
	if got := Clamp(400, 1.10, 250); got != 1.10*250 {
		t.Errorf("Clamp = %v, want %v", got, 1.10*250)
	}
	if got := Clamp(200, 1.10, 250); got != 200 {
		t.Errorf("Clamp = %v, want unchanged 200", got)
	}
}

func TestPlan_HonorsOverride(t *testing.T) {
	override := 123.0
	got := Plan(300, baseCtx(0.05), 1.2, 250, &override)
	if got != 123.0 {
		t.Errorf("Plan with override = %v, want 123", got)
	}
}

func TestPlan_NoOverrideUsesPolicy(t *testing.T) {
	got := Plan(200, baseCtx(0), 1.2, 250, nil)
	if got <= 0 {
		t.Errorf("Plan without override = %v, want > 0", got)
	}
}
