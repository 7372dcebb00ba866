// Package params holds the validated parameter store of a multispecies
// size-spectrum model: per-species coefficient grids, gear selectivity
// and catchability, the species interaction matrix and the resource
// spectrum coefficients, all laid out on a shared grid.Grid.
package params

import (
	"math"

	"github.com/okeanid/sizespec/internal/grid"
)

// Store is the single source of truth for model parameters. All
// coefficient grids are indexed (species, consumer size); gear grids
// carry a leading gear axis. A Store is immutable from the outside:
// mutations go through Modify, which validates a candidate copy before
// swapping it in.
type Store struct {
	Grid    *grid.Grid
	Species []Species
	Gears   []Gear

	// Per-species bin indices on the consumer grid.
	WMinIdx []int // bin containing the egg size
	MaxIdx  []int // last bin not exceeding w_max

	// Species coefficient grids, species x size.
	Maturity  [][]float64
	Psi       [][]float64 // reproduction allocation
	IntakeMax [][]float64
	SearchVol [][]float64
	Metab     [][]float64
	MortExt   [][]float64
	EncExt    [][]float64

	// Gear grids.
	Selectivity  [][][]float64 // gear x species x size
	Catchability [][]float64   // gear x species

	// Interaction is the predator x prey spatial/trophic overlap
	// matrix, entries in [0, 1].
	Interaction [][]float64

	// Resource turnover rate and carrying capacity on the full grid.
	RRPP []float64
	CCPP []float64

	ResourceParams Resource

	// Configured initial state and effort, the defaults for pure rate
	// evaluation and for projections started from scratch.
	InitialN         [][]float64
	InitialNResource []float64
	InitialEffort    []float64

	// Presentation side tables (plot colours, line styles). The
	// numerical core never reads these.
	Linecolour map[string]string
	Linetype   map[string]string
}

// New allocates and fills a Store from the species and gear attribute
// tables. Missing optional columns are filled by the documented default
// formulas, then every coefficient grid is computed and the whole store
// is validated.
func New(g *grid.Grid, species []Species, gears []Gear, res Resource) (*Store, error) {
	res.ApplyDefaults()

	sp := make([]Species, len(species))
	copy(sp, species)
	for i := range sp {
		sp[i].ApplyDefaults(res)
	}

	s := &Store{
		Grid:           g,
		Species:        sp,
		Gears:          append([]Gear(nil), gears...),
		ResourceParams: res,
		Linecolour:     make(map[string]string),
		Linetype:       make(map[string]string),
	}

	s.allocate()
	s.fillSpeciesGrids()
	s.fillGearGrids()
	s.fillResource()
	s.fillInitialState()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) allocate() {
	noW := s.Grid.NoW()
	nSp := len(s.Species)

	s.WMinIdx = make([]int, nSp)
	s.MaxIdx = make([]int, nSp)
	for i, sp := range s.Species {
		idx, err := s.Grid.EggBin(sp.WMin)
		if err != nil {
			// Recorded as -1 so Validate reports it alongside every
			// other violation instead of aborting construction early.
			idx = -1
		}
		s.WMinIdx[i] = idx
		s.MaxIdx[i] = s.Grid.MaxBin(sp.WMax)
	}

	mk := func() [][]float64 {
		m := make([][]float64, nSp)
		for i := range m {
			m[i] = make([]float64, noW)
		}
		return m
	}
	s.Maturity = mk()
	s.Psi = mk()
	s.IntakeMax = mk()
	s.SearchVol = mk()
	s.Metab = mk()
	s.MortExt = mk()
	s.EncExt = mk()

	s.Selectivity = make([][][]float64, len(s.Gears))
	s.Catchability = make([][]float64, len(s.Gears))
	for gi := range s.Gears {
		s.Selectivity[gi] = mk()
		s.Catchability[gi] = make([]float64, nSp)
	}

	s.Interaction = make([][]float64, nSp)
	for i := range s.Interaction {
		s.Interaction[i] = make([]float64, nSp)
		for j := range s.Interaction[i] {
			s.Interaction[i][j] = 1
		}
	}
}

func (s *Store) fillSpeciesGrids() {
	w := s.Grid.W
	for i, sp := range s.Species {
		for j, wj := range w {
			mat := 1 / (1 + math.Pow(wj/sp.WMat, -10))
			s.Maturity[i][j] = mat
			s.Psi[i][j] = mat * math.Pow(wj/sp.WMax, 1-DefaultN)
			s.IntakeMax[i][j] = sp.H * math.Pow(wj, DefaultN)
			s.SearchVol[i][j] = sp.Gamma * math.Pow(wj, DefaultQ)
			s.Metab[i][j] = sp.Ks * math.Pow(wj, DefaultP)
			s.MortExt[i][j] = sp.Z0
			// Above the asymptotic size there is nothing to eat and
			// any remaining energy goes to reproduction.
			if j > s.MaxIdx[i] {
				s.Psi[i][j] = 1
				s.IntakeMax[i][j] = 0
				s.SearchVol[i][j] = 0
			}
		}
	}
}

func (s *Store) fillGearGrids() {
	for gi, gear := range s.Gears {
		for i, sp := range s.Species {
			if gear.Species != "" && gear.Species != sp.Name {
				continue
			}
			s.Catchability[gi][i] = gear.Catchability
			for j, wj := range s.Grid.W {
				s.Selectivity[gi][i][j] = gear.selectivity(wj)
			}
		}
	}
}

func (s *Store) fillResource() {
	n := s.Grid.NoWFull()
	s.RRPP = make([]float64, n)
	s.CCPP = make([]float64, n)
	res := s.ResourceParams
	for j, wj := range s.Grid.WFull {
		s.RRPP[j] = res.R0 * math.Pow(wj, DefaultN-1)
		if wj <= res.Cutoff {
			s.CCPP[j] = res.Kappa * math.Pow(wj, -res.Lambda)
		}
	}
}

func (s *Store) fillInitialState() {
	noW := s.Grid.NoW()
	s.InitialN = make([][]float64, len(s.Species))
	for i, sp := range s.Species {
		s.InitialN[i] = make([]float64, noW)
		if s.WMinIdx[i] < 0 {
			continue
		}
		for j := s.WMinIdx[i]; j <= s.MaxIdx[i]; j++ {
			s.InitialN[i][j] = sp.N0 * math.Pow(s.Grid.W[j], -s.ResourceParams.Lambda)
		}
	}
	s.InitialNResource = append([]float64(nil), s.CCPP...)
	s.InitialEffort = make([]float64, len(s.Gears))
}

// GearNames returns the canonical gear order.
func (s *Store) GearNames() []string {
	names := make([]string, len(s.Gears))
	for i, g := range s.Gears {
		names[i] = g.Name
	}
	return names
}

// SpeciesNames returns the canonical species order.
func (s *Store) SpeciesNames() []string {
	names := make([]string, len(s.Species))
	for i, sp := range s.Species {
		names[i] = sp.Name
	}
	return names
}

// SpeciesIndex returns the row of the named species, or -1.
func (s *Store) SpeciesIndex(name string) int {
	for i, sp := range s.Species {
		if sp.Name == name {
			return i
		}
	}
	return -1
}

// InitialState builds a fresh State from the configured initial
// densities.
func (s *Store) InitialState() *State {
	st := &State{
		N:         make([][]float64, len(s.InitialN)),
		NResource: append([]float64(nil), s.InitialNResource...),
		Other:     make(map[string]any),
	}
	for i := range s.InitialN {
		st.N[i] = append([]float64(nil), s.InitialN[i]...)
	}
	return st
}

// Biomass integrates each species' density over size, in mass units.
func (s *Store) Biomass(st *State) []float64 {
	b := make([]float64, len(s.Species))
	for i := range s.Species {
		sum := 0.0
		for j, n := range st.N[i] {
			sum += n * s.Grid.W[j] * s.Grid.Dw[j]
		}
		b[i] = sum
	}
	return b
}

// Modify runs fn against a deep copy of the store, validates the
// candidate as a whole and swaps it in atomically. A rejected candidate
// leaves the store untouched.
func (s *Store) Modify(fn func(*Store)) error {
	cand := s.clone()
	fn(cand)
	if err := cand.Validate(); err != nil {
		return err
	}
	*s = *cand
	return nil
}

func (s *Store) clone() *Store {
	c := *s
	c.Species = append([]Species(nil), s.Species...)
	c.Gears = append([]Gear(nil), s.Gears...)
	c.WMinIdx = append([]int(nil), s.WMinIdx...)
	c.MaxIdx = append([]int(nil), s.MaxIdx...)
	c.Maturity = clone2(s.Maturity)
	c.Psi = clone2(s.Psi)
	c.IntakeMax = clone2(s.IntakeMax)
	c.SearchVol = clone2(s.SearchVol)
	c.Metab = clone2(s.Metab)
	c.MortExt = clone2(s.MortExt)
	c.EncExt = clone2(s.EncExt)
	c.Catchability = clone2(s.Catchability)
	c.Interaction = clone2(s.Interaction)
	c.Selectivity = make([][][]float64, len(s.Selectivity))
	for i := range s.Selectivity {
		c.Selectivity[i] = clone2(s.Selectivity[i])
	}
	c.RRPP = append([]float64(nil), s.RRPP...)
	c.CCPP = append([]float64(nil), s.CCPP...)
	c.InitialN = clone2(s.InitialN)
	c.InitialNResource = append([]float64(nil), s.InitialNResource...)
	c.InitialEffort = append([]float64(nil), s.InitialEffort...)
	return &c
}

func clone2(m [][]float64) [][]float64 {
	c := make([][]float64, len(m))
	for i := range m {
		c[i] = append([]float64(nil), m[i]...)
	}
	return c
}
