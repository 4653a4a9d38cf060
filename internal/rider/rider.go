// Package rider encapsulates the Rider Model (spec §4.3): Critical Power,
// W′ anaerobic capacity, the Power-Duration Curve, and the derived
// utilities the physics kernel and solver need (PDC lookup, duration cap,
// Skiba W′-balance update).
package rider

import (
	"fmt"
	"math"

	"github.com/nick-riduck/bike-course-simulator/internal/drivetrain"
	"github.com/nick-riduck/bike-course-simulator/internal/kerr"
)

var errEmptyPDC = fmt.Errorf("PDC must contain at least one duration/power pair")

// AddedMassKg is the combined added mass (helmet, shoes, bottle) applied on
// top of rider + bike mass (spec §6 numeric constants).
const AddedMassKg = 1.0

// Profile is the RiderProfile record (spec §3).
type Profile struct {
	MassKg      float64
	CP          float64
	WPrimeJ     float64
	PDC         *PDC
	BikeMassKg  float64
	CdA         float64
	BaselineCrr float64
	Drivetrain  drivetrain.Key
}

// NewProfile validates and constructs a Profile (spec §3 invariants: PDC
// non-empty, CP > 0, W′ >= 0).
func NewProfile(massKg, cp, wPrimeJ float64, pdcRaw map[int]float64, bikeMassKg, cdaM2, baselineCrr float64, dt drivetrain.Key) (*Profile, error) {
	if cp <= 0 {
		return nil, kerr.Newf(kerr.MalformedInput, "rider.cp must be > 0, got %v", cp)
	}
	if wPrimeJ < 0 {
		return nil, kerr.Newf(kerr.MalformedInput, "rider.w_prime_j must be >= 0, got %v", wPrimeJ)
	}
	pdc, err := NewPDC(pdcRaw)
	if err != nil {
		return nil, kerr.At(kerr.MalformedInput, "rider.pdc", err)
	}
	return &Profile{
		MassKg:      massKg,
		CP:          cp,
		WPrimeJ:     wPrimeJ,
		PDC:         pdc,
		BikeMassKg:  bikeMassKg,
		CdA:         cdaM2,
		BaselineCrr: baselineCrr,
		Drivetrain:  dt,
	}, nil
}

// TotalMassKg is rider + bike + the added-mass constant (spec §6).
func (p *Profile) TotalMassKg() float64 {
	return p.MassKg + p.BikeMassKg + AddedMassKg
}

// Efficiency returns the drivetrain's power-dependent efficiency at powerW.
func (p *Profile) Efficiency(powerW float64) float64 {
	return drivetrain.Efficiency(p.Drivetrain, powerW)
}

// durationCapAnchors are the (hours, cap factor) pairs from spec §4.3.
var durationCapAnchors = []struct {
	hours, factor float64
}{
	{1, 1.20},
	{3, 1.10},
	{5, 1.05},
	{8, 0.95},
}

// DurationCapFactor returns the linear-interpolated ceiling multiplier of
// CP for an estimated finish time of tHours (spec §4.3), saturating
// outside the anchor table's domain.
func DurationCapFactor(tHours float64) float64 {
	anchors := durationCapAnchors
	if tHours <= anchors[0].hours {
		return anchors[0].factor
	}
	last := anchors[len(anchors)-1]
	if tHours >= last.hours {
		return last.factor
	}
	for i := 0; i < len(anchors)-1; i++ {
		a, b := anchors[i], anchors[i+1]
		if tHours >= a.hours && tHours <= b.hours {
			ratio := (tHours - a.hours) / (b.hours - a.hours)
			return a.factor + (b.factor-a.factor)*ratio
		}
	}
	return last.factor
}

// DurationCapFactor returns the per-rider ceiling for an estimated finish
// time of tHours, as a convenience bound method mirroring the package
// function (same table; riders don't individualize the anchor points).
func (p *Profile) DurationCapFactor(tHours float64) float64 {
	return DurationCapFactor(tHours)
}

// skibaTauSeconds computes the W′ recovery time constant from the
// depletion-below-CP intensity dCP (spec §4.3, Skiba 2012).
func skibaTauSeconds(dCP float64) float64 {
	return 546*math.Exp(-0.01*dCP) + 316
}

// UpdateWPrime advances W′ balance over dtSeconds at actualPowerW, using
// the Skiba model (spec §4.3): linear depletion above CP, exponential
// recovery toward wPrimeMax below CP.
func UpdateWPrime(wPrimeMax, current, cp, actualPowerW, dtSeconds float64) float64 {
	delta := actualPowerW - cp
	if delta > 0 {
		return current - delta*dtSeconds
	}
	dCP := -delta
	if dCP <= 0 {
		return current
	}
	tau := skibaTauSeconds(dCP)
	deficit := wPrimeMax - current
	return wPrimeMax - deficit*math.Exp(-dtSeconds/tau)
}

// IsBonked reports whether a W′ balance represents depletion (spec §4.3).
func IsBonked(wPrimeBalance float64) bool {
	return wPrimeBalance < 0
}
