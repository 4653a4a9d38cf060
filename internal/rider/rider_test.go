package rider

import (
	"math"
	"testing"

	"github.com/nick-riduck/bike-course-simulator/internal/drivetrain"
)

func samplePDC() map[int]float64 {
	return map[int]float64{
		5:    1000,
		60:   600,
		300:  350,
		1200: 280,
		3600: 230,
	}
}

func TestNewProfile_Valid(t *testing.T) {
	p, err := NewProfile(70, 250, 20000, samplePDC(), 8, 0.32, 0.005, drivetrain.Ultegra)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := p.TotalMassKg(), 70.0+8.0+AddedMassKg; got != want {
		t.Errorf("TotalMassKg() = %v, want %v", got, want)
	}
}

func TestNewProfile_RejectsNonPositiveCP(t *testing.T) {
	if _, err := NewProfile(70, 0, 20000, samplePDC(), 8, 0.32, 0.005, drivetrain.Ultegra); err == nil {
		t.Fatal("expected error for CP <= 0")
	}
}

func TestNewProfile_RejectsNegativeWPrime(t *testing.T) {
	if _, err := NewProfile(70, 250, -1, samplePDC(), 8, 0.32, 0.005, drivetrain.Ultegra); err == nil {
		t.Fatal("expected error for negative W'")
	}
}

func TestNewProfile_RejectsEmptyPDC(t *testing.T) {
	if _, err := NewProfile(70, 250, 20000, map[int]float64{}, 8, 0.32, 0.005, drivetrain.Ultegra); err == nil {
		t.Fatal("expected error for empty PDC")
	}
}

func TestPDC_LimitPower_MonotoneNonIncreasing(t *testing.T) {
	pdc, err := NewPDC(map[int]float64{60: 500, 300: 550, 1200: 260})
	if err != nil {
		t.Fatalf("NewPDC: %v", err)
	}
	// 300s was sanitized down to running-min(500) since it exceeds 60s power.
	if got := pdc.LimitPower(300); got > 500 {
		t.Errorf("LimitPower(300) = %v, expected sanitized to <= 500", got)
	}
}

func TestPDC_LimitPower_RiegelExtrapolation(t *testing.T) {
	pdc, err := NewPDC(map[int]float64{3600: 230})
	if err != nil {
		t.Fatalf("NewPDC: %v", err)
	}
	got := pdc.LimitPower(7200)
	want := 230 * math.Pow(7200.0/3600.0, riegelExponent)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("LimitPower(7200) = %v, want %v", got, want)
	}
}

func TestDurationCapFactor_AnchorsAndInterpolation(t *testing.T) {
	cases := []struct {
		hours float64
		want  float64
	}{
		{0.5, 1.20},
		{1, 1.20},
		{2, 1.15},
		{3, 1.10},
		{4, 1.075},
		{5, 1.05},
		{6.5, 1.00},
		{8, 0.95},
		{12, 0.95},
	}
	for _, c := range cases {
		if got := DurationCapFactor(c.hours); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("DurationCapFactor(%v) = %v, want %v", c.hours, got, c.want)
		}
	}
}

func TestUpdateWPrime_DepletesAboveCP(t *testing.T) {
	got := UpdateWPrime(20000, 20000, 250, 350, 10)
	want := 20000.0 - (350-250)*10
	if got != want {
		t.Errorf("UpdateWPrime depletion = %v, want %v", got, want)
	}
}

func TestUpdateWPrime_RecoversBelowCP(t *testing.T) {
	depleted := 5000.0
	got := UpdateWPrime(20000, depleted, 250, 100, 60)
	if got <= depleted || got >= 20000 {
		t.Errorf("UpdateWPrime recovery = %v, want strictly between %v and 20000", got, depleted)
	}
}

func TestUpdateWPrime_NoChangeAtCP(t *testing.T) {
	if got := UpdateWPrime(20000, 15000, 250, 250, 30); got != 15000 {
		t.Errorf("UpdateWPrime at CP = %v, want unchanged 15000", got)
	}
}

func TestIsBonked(t *testing.T) {
	if IsBonked(1) {
		t.Error("IsBonked(1) = true, want false")
	}
	if !IsBonked(-1) {
		t.Error("IsBonked(-1) = false, want true")
	}
}
