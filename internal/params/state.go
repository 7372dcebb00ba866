package params

import "math"

// State is one snapshot of the simulated community: consumer abundance
// densities on the consumer grid, the resource density on the full
// grid, and the opaque states of any extra ecosystem components. The
// rate pipeline treats a State as read-only; only the projector mutates
// it, between timesteps.
type State struct {
	N         [][]float64 // species x consumer size
	NResource []float64   // full grid
	Other     map[string]any
}

// Clone deep-copies the density fields. Component states are copied by
// reference: their dynamics functions return fresh values each step and
// never mutate in place.
func (st *State) Clone() *State {
	c := &State{
		N:         clone2(st.N),
		NResource: append([]float64(nil), st.NResource...),
		Other:     make(map[string]any, len(st.Other)),
	}
	for k, v := range st.Other {
		c.Other[k] = v
	}
	return c
}

// IsValid reports whether every density is finite.
func (st *State) IsValid() bool {
	for _, row := range st.N {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	for _, v := range st.NResource {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
