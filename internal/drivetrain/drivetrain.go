// Package drivetrain implements the closed drivetrain-efficiency
// enumeration and power-dependent correction from spec §6.
package drivetrain

import "math"

// Key identifies a drivetrain (spec §6's enumeration).
type Key string

const (
	DuraAce      Key = "duraAce"
	Ultegra      Key = "ultegra"
	R105         Key = "105"
	Tiagra       Key = "tiagra"
	Sora         Key = "sora"
	Claris       Key = "claris"
	SIS          Key = "sis"
	RedAXS       Key = "redAxs"
	ForceAXS     Key = "forceAxs"
	Rival        Key = "rival"
	Apex         Key = "apex"
	SuperRecord  Key = "superRecord"
	Record       Key = "Record"
	Chorus       Key = "Chorus"
	Potenza      Key = "Potenza"
	Athena       Key = "Athena"
	Veloce       Key = "Veloce"
	Centaur      Key = "Centaur"
	KForce       Key = "kForce"
)

// DefaultBaseEfficiency is used for an unrecognized or empty Key.
const DefaultBaseEfficiency = 0.962

// baseEfficiency maps each key to a base efficiency in [0.940, 0.965]
// (spec §6). Values are spread across the enumeration's quality tiers;
// unlisted entries fall back to DefaultBaseEfficiency.
var baseEfficiency = map[Key]float64{
	DuraAce:     0.965,
	SuperRecord: 0.965,
	RedAXS:      0.964,
	Record:      0.964,
	Ultegra:     0.963,
	ForceAXS:    0.963,
	Chorus:      0.962,
	R105:        0.961,
	Rival:       0.961,
	Potenza:     0.960,
	Tiagra:      0.958,
	Athena:      0.957,
	Apex:        0.955,
	Veloce:      0.953,
	Sora:        0.950,
	Centaur:     0.949,
	Claris:      0.945,
	KForce:      0.944,
	SIS:         0.940,
}

// BaseEfficiency returns the base efficiency for key, or
// DefaultBaseEfficiency if key is not recognized.
func BaseEfficiency(key Key) float64 {
	if v, ok := baseEfficiency[key]; ok {
		return v
	}
	return DefaultBaseEfficiency
}

// Efficiency returns η(P), the power-dependent drivetrain efficiency
// (spec §6): η(P) = (2.1246·ln(clamp(P, 50, 400)) − 11.5 + 100·η_base) / 100.
func Efficiency(key Key, powerW float64) float64 {
	p := powerW
	if p < 50 {
		p = 50
	}
	if p > 400 {
		p = 400
	}
	base := BaseEfficiency(key)
	return (2.1246*math.Log(p) - 11.5 + 100*base) / 100
}
