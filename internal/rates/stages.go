package rates

import (
	"fmt"
	"math"

	"github.com/okeanid/sizespec/internal/params"
)

func alloc2(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// checkContribution validates a species x size array returned by an
// extension component before it is folded into a stage output.
func (m *Model) checkContribution(stage, name string, c [][]float64) error {
	nSp := len(m.Store.Species)
	noW := m.Store.Grid.NoW()
	if len(c) != nSp {
		return fmt.Errorf("%w: %s: component %s contribution has %d species rows, want %d",
			ErrShapeMismatch, stage, name, len(c), nSp)
	}
	for i := range c {
		if len(c[i]) != noW {
			return fmt.Errorf("%w: %s: component %s contribution species %d has %d bins, want %d",
				ErrShapeMismatch, stage, name, i, len(c[i]), noW)
		}
	}
	return nil
}

// DefaultEncounter computes the search-volume-weighted availability of
// prey biomass (resource plus interaction-weighted consumer spectra)
// plus the external encounter coefficient and any component
// contributions.
func DefaultEncounter(m *Model, st *params.State, t float64) ([][]float64, error) {
	s := m.Store
	g := s.Grid
	nSp := len(s.Species)
	noW := g.NoW()
	off := g.FullOffset()

	enc := alloc2(nSp, noW)
	q := make([]float64, g.NoWFull())

	for i := 0; i < nSp; i++ {
		// Prey biomass density seen by predator i on the full grid.
		for j, nr := range st.NResource {
			q[j] = nr * g.WFull[j]
		}
		for k := 0; k < nSp; k++ {
			theta := s.Interaction[i][k]
			if theta == 0 {
				continue
			}
			for j := 0; j < noW; j++ {
				q[off+j] += theta * st.N[k][j] * g.W[j]
			}
		}

		avail := m.Conv.Availability(m.Kernels[i], q, off+s.MaxIdx[i])
		for j := 0; j < noW; j++ {
			enc[i][j] = s.SearchVol[i][j]*avail[off+j] + s.EncExt[i][j]
		}
	}

	for _, name := range m.Reg.Components() {
		comp, _ := m.Reg.Component(name)
		if comp.Encounter == nil {
			continue
		}
		contrib := comp.Encounter(m, st, t)
		if err := m.checkContribution(StageEncounter, name, contrib); err != nil {
			return nil, err
		}
		for i := range enc {
			for j := range enc[i] {
				enc[i][j] += contrib[i][j]
			}
		}
	}
	return enc, nil
}

// DefaultFeedingLevel is f = E / (E + intake_max), the fraction of
// maximum intake achieved. It stays well-defined for unbounded intake:
// finite/inf is 0 under IEEE arithmetic, and the energy stage uses the
// (1-f)*E form so assimilated intake remains finite in that limit.
func DefaultFeedingLevel(m *Model, encounter [][]float64) ([][]float64, error) {
	s := m.Store
	f := alloc2(len(s.Species), s.Grid.NoW())
	for i := range f {
		if len(encounter) <= i || len(encounter[i]) != s.Grid.NoW() {
			return nil, fmt.Errorf("%w: feeding_level: encounter grid malformed for species %d",
				ErrShapeMismatch, i)
		}
		for j := range f[i] {
			e := encounter[i][j]
			if e == 0 {
				continue
			}
			f[i][j] = e / (e + s.IntakeMax[i][j])
		}
	}
	return f, nil
}

// DefaultEReproAndGrowth is the net energy available after metabolism:
// alpha*(1-f)*E - k(w). The (1-f)*E form equals f*intake_max wherever
// intake is bounded. May be negative.
func DefaultEReproAndGrowth(m *Model, encounter, feeding [][]float64) ([][]float64, error) {
	s := m.Store
	e := alloc2(len(s.Species), s.Grid.NoW())
	for i := range e {
		alpha := s.Species[i].Alpha
		for j := range e[i] {
			e[i][j] = alpha*(1-feeding[i][j])*encounter[i][j] - s.Metab[i][j]
		}
	}
	return e, nil
}

// DefaultReproSplit divides net energy between reproduction (psi share)
// and growth, clamping both at zero so an energy deficit never produces
// negative investment.
func DefaultReproSplit(m *Model, energy [][]float64) (repro, growth [][]float64, err error) {
	s := m.Store
	repro = alloc2(len(s.Species), s.Grid.NoW())
	growth = alloc2(len(s.Species), s.Grid.NoW())
	for i := range energy {
		for j, e := range energy[i] {
			r := s.Psi[i][j] * e
			if r < 0 {
				r = 0
			}
			g := e - r
			if g < 0 {
				g = 0
			}
			repro[i][j] = r
			growth[i][j] = g
		}
	}
	return repro, growth, nil
}

// DefaultPredRate computes, per predator species, the predation
// pressure exerted on each prey size of the full grid.
func DefaultPredRate(m *Model, st *params.State, feeding [][]float64) ([][]float64, error) {
	s := m.Store
	g := s.Grid
	off := g.FullOffset()

	pr := make([][]float64, len(s.Species))
	p := make([]float64, g.NoWFull())
	for i := range s.Species {
		for j := range p {
			p[j] = 0
		}
		for j := 0; j < g.NoW(); j++ {
			p[off+j] = (1 - feeding[i][j]) * s.SearchVol[i][j] * st.N[i][j]
		}
		pr[i] = m.Conv.Exposure(m.Kernels[i], p)
	}
	return pr, nil
}

// DefaultPredMort folds predation pressure into per-prey-species
// mortality, weighted by the interaction matrix.
func DefaultPredMort(m *Model, predRate [][]float64) ([][]float64, error) {
	s := m.Store
	off := s.Grid.FullOffset()
	pm := alloc2(len(s.Species), s.Grid.NoW())
	for prey := range s.Species {
		for pred := range s.Species {
			theta := s.Interaction[pred][prey]
			if theta == 0 {
				continue
			}
			if len(predRate[pred]) != s.Grid.NoWFull() {
				return nil, fmt.Errorf("%w: pred_mort: pred_rate species %s has %d bins, want %d",
					ErrShapeMismatch, s.Species[pred].Name, len(predRate[pred]), s.Grid.NoWFull())
			}
			for j := 0; j < s.Grid.NoW(); j++ {
				pm[prey][j] += theta * predRate[pred][off+j]
			}
		}
	}
	return pm, nil
}

// DefaultFMort is selectivity x catchability x effort per gear, summed
// into total fishing mortality.
func DefaultFMort(m *Model, effort []float64) (gear [][][]float64, total [][]float64, err error) {
	s := m.Store
	if len(effort) != len(s.Gears) {
		return nil, nil, fmt.Errorf("%w: f_mort: effort has %d entries, want %d gears",
			ErrShapeMismatch, len(effort), len(s.Gears))
	}
	nSp := len(s.Species)
	noW := s.Grid.NoW()
	gear = make([][][]float64, len(s.Gears))
	total = alloc2(nSp, noW)
	for gi := range s.Gears {
		gear[gi] = alloc2(nSp, noW)
		for i := 0; i < nSp; i++ {
			qe := s.Catchability[gi][i] * effort[gi]
			if qe == 0 {
				continue
			}
			for j := 0; j < noW; j++ {
				fm := s.Selectivity[gi][i][j] * qe
				gear[gi][i][j] = fm
				total[i][j] += fm
			}
		}
	}
	return gear, total, nil
}

// DefaultMort adds predation, fishing, external background mortality
// and component contributions.
func DefaultMort(m *Model, st *params.State, predMort, fMort [][]float64, t float64) ([][]float64, error) {
	s := m.Store
	mort := alloc2(len(s.Species), s.Grid.NoW())
	for i := range mort {
		for j := range mort[i] {
			mort[i][j] = predMort[i][j] + fMort[i][j] + s.MortExt[i][j]
		}
	}
	for _, name := range m.Reg.Components() {
		comp, _ := m.Reg.Component(name)
		if comp.Mortality == nil {
			continue
		}
		contrib := comp.Mortality(m, st, t)
		if err := m.checkContribution(StageMort, name, contrib); err != nil {
			return nil, err
		}
		for i := range mort {
			for j := range mort[i] {
				mort[i][j] += contrib[i][j]
			}
		}
	}
	return mort, nil
}

// DefaultResourceMort sums predation pressure over consumer predators
// at every resource size.
func DefaultResourceMort(m *Model, predRate [][]float64) ([]float64, error) {
	n := m.Store.Grid.NoWFull()
	rm := make([]float64, n)
	for _, pr := range predRate {
		if len(pr) != n {
			return nil, fmt.Errorf("%w: resource_mort: pred_rate row has %d bins, want %d",
				ErrShapeMismatch, len(pr), n)
		}
		for j, v := range pr {
			rm[j] += v
		}
	}
	return rm, nil
}

// DefaultRDI is density-independent egg production: half the population
// is female (the 0.5), reproductive output is converted to egg numbers
// by the egg weight.
func DefaultRDI(m *Model, st *params.State, eRepro [][]float64) ([]float64, error) {
	s := m.Store
	rdi := make([]float64, len(s.Species))
	for i, sp := range s.Species {
		sum := 0.0
		for j := 0; j < s.Grid.NoW(); j++ {
			sum += eRepro[i][j] * st.N[i][j] * s.Grid.Dw[j]
		}
		rdi[i] = 0.5 * sum * sp.ERepro / s.Grid.W[s.WMinIdx[i]]
	}
	return rdi, nil
}

// DefaultBevertonHolt saturates recruitment at the species' maximum:
// rdd = rdi * r_max / (rdi + r_max). An unbounded r_max passes rdi
// through unchanged.
func DefaultBevertonHolt(m *Model, rdi []float64) ([]float64, error) {
	s := m.Store
	rdd := make([]float64, len(rdi))
	for i, r := range rdi {
		rMax := s.Species[i].RMax
		switch {
		case r == 0:
			rdd[i] = 0
		case math.IsInf(rMax, 1):
			rdd[i] = r
		default:
			rdd[i] = r * rMax / (r + rMax)
		}
	}
	return rdd, nil
}
