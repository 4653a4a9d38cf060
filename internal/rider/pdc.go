package rider

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// riegelExponent is standardized to 0.07 (spec §9 Open Questions).
const riegelExponent = -0.07

// PDC is the Power-Duration Curve: an ordered sequence of (duration_s,
// watts) pairs plus a cached interpolator, per spec §9's storage note.
// Updates rebuild the cache rather than mutating it in place.
type PDC struct {
	durations []float64 // seconds, strictly increasing
	watts     []float64 // non-increasing, aligned with durations
	curve     *interp.PiecewiseLinear
}

// NewPDC sanitizes raw (duration_s -> watts) pairs into a monotone
// non-increasing curve (spec §3 invariant) and builds the log-duration
// piecewise-linear interpolator.
func NewPDC(raw map[int]float64) (*PDC, error) {
	if len(raw) == 0 {
		return nil, errEmptyPDC
	}

	type pair struct{ d, w float64 }
	pairs := make([]pair, 0, len(raw))
	for d, w := range raw {
		if d > 0 {
			pairs = append(pairs, pair{float64(d), w})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].d < pairs[j].d })
	if len(pairs) == 0 {
		return nil, errEmptyPDC
	}

	// Sanitize to non-increasing power as duration grows: clamp each watt
	// value to the running minimum seen so far.
	xs := make([]float64, 0, len(pairs))
	ys := make([]float64, 0, len(pairs))
	runningMin := math.Inf(1)
	for _, p := range pairs {
		if p.w < runningMin {
			runningMin = p.w
		}
		// Deduplicate equal durations by keeping the last (smallest) value.
		if len(xs) > 0 && xs[len(xs)-1] == math.Log(p.d) {
			ys[len(ys)-1] = runningMin
			continue
		}
		xs = append(xs, math.Log(p.d))
		ys = append(ys, runningMin)
	}

	curve := new(interp.PiecewiseLinear)
	if len(xs) >= 2 {
		if err := curve.Fit(xs, ys); err != nil {
			return nil, err
		}
	}

	durations := make([]float64, len(xs))
	for i, x := range xs {
		durations[i] = math.Exp(x)
	}

	return &PDC{durations: durations, watts: ys, curve: curve}, nil
}

// LimitPower returns the PDC's best sustainable power for durationS
// (spec §4.3): piecewise-linear interpolation in log-duration space within
// the PDC's domain, Riegel extrapolation beyond it.
func (p *PDC) LimitPower(durationS float64) float64 {
	if durationS <= 0 {
		durationS = 1
	}
	n := len(p.durations)
	maxD, maxW := p.durations[n-1], p.watts[n-1]

	if durationS > maxD {
		return maxW * math.Pow(durationS/maxD, riegelExponent)
	}
	minD := p.durations[0]
	if durationS <= minD || n == 1 {
		return p.watts[0]
	}
	return p.curve.Predict(math.Log(durationS))
}

// MaxDuration returns the PDC's longest recorded duration (seconds).
func (p *PDC) MaxDuration() float64 {
	return p.durations[len(p.durations)-1]
}
