package solver

import "errors"

var (
	errNoSegments      = errors.New("solver: no atomic segments to integrate")
	errNoFeasibleTrial = errors.New("solver: no feasible base power found in [min, max]")
)
